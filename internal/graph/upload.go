package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/photoport/photoport/internal/chunk"
)

// conflictRenameQuery instructs the destination to rename on a name
// collision instead of failing the create.
const conflictRenameQuery = "?@microsoft.graph.conflictBehavior=rename"

// ProgressFunc is called after each accepted chunk with the bytes
// delivered so far and the total content length. Advisory only.
type ProgressFunc func(done, total int64)

// UploadSession is a short-lived server-side target for delivering one
// photo's content across multiple sequential requests.
type UploadSession struct {
	UploadURL string
}

type createSessionRequest struct {
	Item sessionItem `json:"item"`
}

type sessionItem struct {
	Name string `json:"name"`
}

type createSessionResponse struct {
	UploadURL          string `json:"uploadUrl"`
	ExpirationDateTime string `json:"expirationDateTime"`
}

type uploadItemResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// CreateUploadSession negotiates a session-scoped upload URL for an item
// named title. A non-empty folderID places the item in that folder;
// otherwise it lands under the default Pictures path at the drive root.
func (c *Client) CreateUploadSession(ctx context.Context, folderID, title string) (*UploadSession, error) {
	c.logger.Info("creating upload session",
		slog.String("folder_id", folderID),
		slog.String("title", title),
	)

	var path string
	if folderID == "" {
		path = fmt.Sprintf("/v1.0/me/drive/root:/Pictures/%s:/createUploadSession", url.PathEscape(title))
	} else {
		path = fmt.Sprintf("/v1.0/me/drive/items/%s:/%s:/createUploadSession", folderID, url.PathEscape(title))
	}

	path += conflictRenameQuery

	bodyBytes, err := json.Marshal(createSessionRequest{Item: sessionItem{Name: title}})
	if err != nil {
		return nil, fmt.Errorf("graph: marshaling upload session request: %w", err)
	}

	resp, err := c.do(ctx, func() (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(
			ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes),
		)
		if reqErr != nil {
			return nil, reqErr
		}

		req.Header.Set("Content-Type", "application/json")

		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var csr createSessionResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&csr); decErr != nil {
		return nil, fmt.Errorf("graph: decoding upload session response: %w", decErr)
	}

	if csr.UploadURL == "" {
		return nil, fmt.Errorf("graph: upload session for %q has no upload url: %w", title, ErrProtocol)
	}

	return &UploadSession{UploadURL: csr.UploadURL}, nil
}

// UploadChunk delivers one byte range to the session URL. Intermediate
// chunks return an empty id; the final chunk's response carries the
// created item's id. total is the full content length, sent as the
// denominator of the Content-Range header.
func (c *Client) UploadChunk(
	ctx context.Context, session *UploadSession, ck chunk.Chunk, total int64, mediaType string,
) (string, error) {
	c.logger.Debug("uploading chunk",
		slog.Int64("start", ck.Start),
		slog.Int64("end", ck.End),
		slog.Int64("total", total),
	)

	resp, err := c.do(ctx, func() (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(
			ctx, http.MethodPut, session.UploadURL, bytes.NewReader(ck.Data),
		)
		if reqErr != nil {
			return nil, reqErr
		}

		req.ContentLength = ck.Size
		req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", ck.Start, ck.End, total))

		if mediaType != "" {
			req.Header.Set("Content-Type", mediaType)
		}

		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	// 202 Accepted acknowledges an intermediate range without item data.
	if resp.StatusCode == http.StatusAccepted {
		if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
			return "", fmt.Errorf("graph: draining chunk response body: %w", drainErr)
		}

		return "", nil
	}

	var uir uploadItemResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&uir); decErr != nil {
		return "", fmt.Errorf("graph: decoding chunk response: %w", decErr)
	}

	return uir.ID, nil
}

// Upload drives one photo's bytes through the session protocol: create
// the session, split the stream into fixed-size chunks, and send each
// range in strict offset order — no chunk is sent before its predecessor
// is accepted. Returns the created item's id from the final chunk.
//
// The stream is fully consumed and closed before the first chunk is
// sent. A failed chunk aborts the whole upload; the next attempt of the
// enclosing step restarts from offset zero.
func (c *Client) Upload(
	ctx context.Context, folderID, title, mediaType string,
	rc io.ReadCloser, progress ProgressFunc,
) (string, error) {
	session, err := c.CreateUploadSession(ctx, folderID, title)
	if err != nil {
		rc.Close()
		return "", err
	}

	chunks, err := chunk.Split(rc, c.chunkSize)
	if err != nil {
		return "", err
	}

	if len(chunks) == 0 {
		return "", fmt.Errorf("graph: %q has no content to upload", title)
	}

	total := chunk.Total(chunks)

	c.logger.Info("uploading content",
		slog.String("title", title),
		slog.Int("chunks", len(chunks)),
		slog.Int64("total_bytes", total),
	)

	var itemID string

	for _, ck := range chunks {
		id, chunkErr := c.UploadChunk(ctx, session, ck, total, mediaType)
		if chunkErr != nil {
			return "", chunkErr
		}

		itemID = id

		if progress != nil {
			progress(ck.End+1, total)
		}
	}

	if itemID == "" {
		return "", fmt.Errorf("graph: upload of %q finished without an item id: %w", title, ErrProtocol)
	}

	c.logger.Info("upload complete",
		slog.String("title", title),
		slog.String("item_id", itemID),
	)

	return itemID, nil
}
