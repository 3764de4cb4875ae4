package config

import (
	"os"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	os.Setenv("STUDENT_TABLE", "testdata/students.xlsx")
	os.Setenv("SUBMITTED_TABLE", "testdata/submitted.csv")
	os.Setenv("SMTP_HOST", "smtp.example.org")
	os.Setenv("MAIL_TO", "office@example.org")
	os.Setenv("DOWNLOAD_TOKEN", "testtoken123")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Tables.ReferencePath != "testdata/students.xlsx" {
		t.Fatalf("unexpected reference table path: %+v", cfg.Tables)
	}
	if cfg.Mail.Host == "" || cfg.DownloadToken == "" {
		t.Fatalf("unexpected empty config values: %+v", cfg)
	}
	if cfg.Uploads.Dir == "" {
		t.Fatalf("upload dir default missing: %+v", cfg.Uploads)
	}
}
