package ingestion

import "testing"

func TestInferMetadata(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		location    string
		wantTopic   string
		wantDocType string
	}{
		{
			name:        "plain file in docs dir",
			location:    "docs/api.md",
			wantTopic:   "general",
			wantDocType: "reference",
		},
		{
			name:        "topic from parent directory",
			location:    "docs/networking/vpn.md",
			wantTopic:   "networking",
			wantDocType: "reference",
		},
		{
			name:        "readme is an overview",
			location:    "project/README.md",
			wantTopic:   "project",
			wantDocType: "overview",
		},
		{
			name:        "changelog",
			location:    "docs/CHANGELOG.md",
			wantTopic:   "general",
			wantDocType: "changelog",
		},
		{
			name:        "quickstart is a tutorial",
			location:    "guides/quickstart.txt",
			wantTopic:   "guides",
			wantDocType: "tutorial",
		},
		{
			name:        "url topic from host",
			location:    "https://www.example.com/docs/setup.md",
			wantTopic:   "example.com",
			wantDocType: "reference",
		},
		{
			name:        "url tutorial path segment",
			location:    "https://example.com/tutorials/first-steps",
			wantTopic:   "example.com",
			wantDocType: "tutorial",
		},
		{
			name:        "url guide path segment",
			location:    "https://example.com/guides/deploy",
			wantTopic:   "example.com",
			wantDocType: "guide",
		},
		{
			name:        "url readme stem wins",
			location:    "https://example.com/repo/README.md",
			wantTopic:   "example.com",
			wantDocType: "overview",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := InferMetadata(tt.location)
			if got.Topic != tt.wantTopic {
				t.Errorf("Topic = %q, want %q", got.Topic, tt.wantTopic)
			}
			if got.DocType != tt.wantDocType {
				t.Errorf("DocType = %q, want %q", got.DocType, tt.wantDocType)
			}
		})
	}
}
