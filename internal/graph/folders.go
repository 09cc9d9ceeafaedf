package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// createFolderPath is the children collection of the drive's special
// photos container — new albums land here.
const createFolderPath = "/v1.0/me/drive/special/photos/children"

type createFolderRequest struct {
	Name             string      `json:"name"`
	Folder           folderFacet `json:"folder"`
	ConflictBehavior string      `json:"@microsoft.graph.conflictBehavior"` //nolint:tagliatelle // Graph API annotation key
}

type folderFacet struct{}

type createFolderResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateFolder creates a named folder under the photos container and
// returns its server-assigned id. Name collisions are renamed by the
// destination instead of failing.
func (c *Client) CreateFolder(ctx context.Context, name string) (string, error) {
	c.logger.Info("creating folder",
		slog.String("name", name),
	)

	reqBody := createFolderRequest{
		Name:             name,
		Folder:           folderFacet{},
		ConflictBehavior: "rename",
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("graph: marshaling create folder request: %w", err)
	}

	resp, err := c.do(ctx, func() (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(
			ctx, http.MethodPost, c.baseURL+createFolderPath, bytes.NewReader(bodyBytes),
		)
		if reqErr != nil {
			return nil, reqErr
		}

		req.Header.Set("Content-Type", "application/json")

		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var cfr createFolderResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&cfr); decErr != nil {
		return "", fmt.Errorf("graph: decoding create folder response: %w", decErr)
	}

	// The API contract guarantees every created folder has an id.
	if cfr.ID == "" {
		return "", fmt.Errorf("graph: created folder %q has no id: %w", name, ErrProtocol)
	}

	c.logger.Debug("folder created",
		slog.String("name", name),
		slog.String("folder_id", cfr.ID),
	)

	return cfr.ID, nil
}
