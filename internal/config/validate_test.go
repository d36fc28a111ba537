package config

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr []string
	}{
		{
			name:   "defaults",
			mutate: func(c *Config) {},
		},
		{
			name: "valid tool overrides",
			mutate: func(c *Config) {
				c.Tools["ffmpeg"] = ToolConfig{
					ReleaseURL:   "https://api.example.com/releases/latest",
					ChecksumURL:  "https://example.com/checksums.sha256",
					DownloadURLs: map[string]string{"linux": "https://example.com/a.tar.xz", "darwin/arm64": "http://example.com/b.zip"},
				}
			},
		},
		{
			name: "bad log settings",
			mutate: func(c *Config) {
				c.Log.Level = "trace"
				c.Log.Format = "xml"
			},
			wantErr: []string{"log.level", "log.format"},
		},
		{
			name: "non-positive timeouts",
			mutate: func(c *Config) {
				c.OperationTimeout = 0
				c.HTTPTimeout = -1
			},
			wantErr: []string{"operation_timeout", "http_timeout"},
		},
		{
			name:    "negative backup keep",
			mutate:  func(c *Config) { c.BackupKeep = -1 },
			wantErr: []string{"backup_keep"},
		},
		{
			name:    "missing data dir",
			mutate:  func(c *Config) { c.DataDir = "" },
			wantErr: []string{"data_dir"},
		},
		{
			name: "bad urls",
			mutate: func(c *Config) {
				c.Tools["yt-dlp"] = ToolConfig{
					ReleaseURL:   "ftp://example.com/latest",
					ChecksumURL:  "relative/path",
					DownloadURLs: map[string]string{"Linux AMD64": "https://example.com/x", "windows": ""},
				}
			},
			wantErr: []string{
				"tools.yt-dlp.release_url",
				"tools.yt-dlp.checksum_url",
				"tools.yt-dlp.download_urls.Linux AMD64",
				"tools.yt-dlp.download_urls.windows",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)

			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !strings.HasPrefix(err.Error(), "validation errors:\n  - ") {
				t.Errorf("unexpected error layout: %q", err)
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %q", err, want)
				}
			}
		})
	}
}
