// Package render turns stored credentials into hosted QR images.
package render

import (
	"context"
	"errors"
	"fmt"
	"log"

	"eventpass/internal/attendance"
	"eventpass/internal/cloudinary"
	"eventpass/internal/credential"
	"eventpass/internal/queue"
)

// ErrNoCredential is returned for a team that was never issued a token.
var ErrNoCredential = errors.New("team has no credential")

// Uploader hosts rendered images.
type Uploader interface {
	UploadPNG(ctx context.Context, data []byte, publicID string) (*cloudinary.UploadResult, error)
}

// Worker consumes render jobs.
type Worker struct {
	store    attendance.Store
	codec    *credential.Codec
	uploader Uploader
}

// NewWorker builds a worker. A nil uploader makes every job a no-op.
func NewWorker(store attendance.Store, codec *credential.Codec, uploader Uploader) *Worker {
	return &Worker{store: store, codec: codec, uploader: uploader}
}

// Run processes messages until the queue's channel closes.
func (w *Worker) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume init failed: %w", err)
	}
	for msg := range messages {
		if msg.Type != queue.TypeRenderCredential {
			log.Printf("render: skipping %q message", msg.Type)
			continue
		}
		url, err := w.Handle(ctx, msg.TeamID)
		if err != nil {
			log.Printf("render team %s failed: %v", msg.TeamID, err)
			continue
		}
		if url != "" {
			log.Printf("render team %s: %s", msg.TeamID, url)
		}
	}
	return nil
}

// Handle renders one team's credential, uploads it and records the URL.
func (w *Worker) Handle(ctx context.Context, teamID string) (string, error) {
	if w.uploader == nil {
		return "", nil
	}
	team, err := w.store.GetTeamByID(ctx, teamID)
	if err != nil {
		return "", err
	}
	if team.CredentialToken == "" {
		return "", ErrNoCredential
	}
	png, err := w.codec.Encode(credential.Payload{TeamID: team.ID, EventID: team.EventID, Token: team.CredentialToken})
	if err != nil {
		return "", err
	}
	res, err := w.uploader.UploadPNG(ctx, png, "qr-"+team.ID)
	if err != nil {
		return "", err
	}
	if err := w.store.SetQRImageURL(ctx, team.ID, res.SecureURL); err != nil {
		return "", fmt.Errorf("store qr url: %w", err)
	}
	return res.SecureURL, nil
}
