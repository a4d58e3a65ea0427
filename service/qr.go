package service

import (
	"context"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// QRService renders QR codes for published menu URLs and stores them as
// public objects next to the menu's other assets.
type QRService struct {
	storage       *MinioService
	publicBaseURL string
}

func NewQRService(storage *MinioService, publicBaseURL string) *QRService {
	return &QRService{
		storage:       storage,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// MenuURL returns the public link a QR code points at
func (s *QRService) MenuURL(slug string) string {
	return fmt.Sprintf("%s/m/%s", s.publicBaseURL, slug)
}

// GenerateAndStore renders the menu's QR PNG and uploads it.
// Returns the object name the menu record should keep.
func (s *QRService) GenerateAndStore(ctx context.Context, menuID, slug string) (string, error) {
	png, err := qrcode.Encode(s.MenuURL(slug), qrcode.Medium, 512)
	if err != nil {
		return "", fmt.Errorf("failed to render QR code: %w", err)
	}

	objectName := fmt.Sprintf("qr/%s.png", menuID)
	if err := s.storage.UploadBytes(ctx, objectName, png, "image/png"); err != nil {
		return "", err
	}

	return objectName, nil
}
