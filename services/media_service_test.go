package services

import (
	"testing"

	"github.com/staffhive/teamchat/models"
)

func TestClassifyAttachment(t *testing.T) {
	cases := []struct {
		filename string
		want     string
	}{
		{"voice-note.mp3", models.AttachmentAudio},
		{"clip.WAV", models.AttachmentAudio},
		{"memo.m4a", models.AttachmentAudio},
		{"recording.ogg", models.AttachmentAudio},
		{"photo.jpg", models.AttachmentImage},
		{"screenshot.png", models.AttachmentImage},
		{"scan.pdf", models.AttachmentImage}, // everything non-audio is coarse-typed image
		{"noextension", models.AttachmentImage},
	}
	for _, tc := range cases {
		if got := ClassifyAttachment(tc.filename); got != tc.want {
			t.Errorf("ClassifyAttachment(%q) = %q, want %q", tc.filename, got, tc.want)
		}
	}
}
