package camera

import (
	"context"
	"image"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// MJPEGSource reads a multipart/x-mixed-replace JPEG stream, as served by IP cameras.
type MJPEGSource struct {
	cancel context.CancelFunc
	body   io.ReadCloser
	reader *multipart.Reader
}

// OpenMJPEG connects to url. The connection lives until Close.
func OpenMJPEG(ctx context.Context, url string) (*MJPEGSource, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "create stream request")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "connect to stream")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, errors.Errorf("stream returned status %d", resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		cancel()
		return nil, errors.Errorf("unexpected stream content type %q", resp.Header.Get("Content-Type"))
	}

	return &MJPEGSource{
		cancel: cancel,
		body:   resp.Body,
		reader: multipart.NewReader(resp.Body, params["boundary"]),
	}, nil
}

// Next decodes the next part. A part that is not a valid JPEG is transient.
func (m *MJPEGSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	part, err := m.reader.NextPart()
	if err == io.EOF {
		return nil, ErrEndOfStream
	}
	if err != nil {
		return nil, errors.Wrap(err, "read stream part")
	}
	defer part.Close()

	img, err := jpeg.Decode(part)
	if err != nil {
		return nil, Transient(errors.Wrap(err, "decode stream frame"))
	}
	return img, nil
}

// Close drops the connection.
func (m *MJPEGSource) Close() error {
	m.cancel()
	return m.body.Close()
}
