package service

import (
	"testing"
)

func TestQRServiceMenuURL(t *testing.T) {
	svc := NewQRService(nil, "https://menus.example.com/")

	url := svc.MenuURL("corner-bistro")
	if url != "https://menus.example.com/m/corner-bistro" {
		t.Errorf("Unexpected menu URL: %s", url)
	}
}
