package storage

import "os"

// MinIOConfig holds MinIO connection configuration for the artifact archive.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// LoadMinIOConfig loads MinIO config from environment. An empty Endpoint
// means archiving is disabled.
func LoadMinIOConfig() *MinIOConfig {
	useSSL := false
	if os.Getenv("MINIO_USE_SSL") == "true" {
		useSSL = true
	}
	return &MinIOConfig{
		Endpoint:  os.Getenv("MINIO_ENDPOINT"),
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
		UseSSL:    useSSL,
		Bucket:    getEnv("MINIO_BUCKET", "intake-uploads"),
	}
}

func getEnv(k, d string) string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	return v
}
