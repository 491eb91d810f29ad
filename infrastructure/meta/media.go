package meta

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Media is a downloaded attachment.
type Media struct {
	Data     []byte
	MimeType string
}

type mediaInfo struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
	ID       string `json:"id"`
}

// DownloadMedia resolves mediaID to its temporary URL and fetches the bytes.
func (c *Client) DownloadMedia(ctx context.Context, mediaID string) (Media, error) {
	if !c.Configured() {
		return Media{}, ErrNotConfigured
	}

	var info mediaInfo
	err := c.withRetry(ctx, "media lookup", func() error {
		return c.jsonRequest(ctx, http.MethodGet, c.endpoint(mediaID), nil, &info)
	})
	if err != nil {
		return Media{}, fmt.Errorf("failed to resolve media %s: %w", mediaID, err)
	}
	if info.URL == "" {
		return Media{}, fmt.Errorf("media %s has no download url", mediaID)
	}

	var media Media
	err = c.withRetry(ctx, "media download", func() error {
		m, err := c.fetch(ctx, info.URL)
		if err != nil {
			return err
		}
		media = m
		return nil
	})
	if err != nil {
		return Media{}, fmt.Errorf("failed to download media %s: %w", mediaID, err)
	}
	if media.MimeType == "" || media.MimeType == "application/octet-stream" {
		media.MimeType = info.MimeType
	}
	return media, nil
}

func (c *Client) fetch(ctx context.Context, url string) (Media, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Media{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Media{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return Media{}, &APIError{Status: resp.StatusCode, Body: string(data)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return Media{}, err
	}

	mime := resp.Header.Get("Content-Type")
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	return Media{Data: data, MimeType: strings.TrimSpace(mime)}, nil
}
