package config

import (
    "os"
    "time"
)

// ImageConfig selects how hall image references are turned into URLs.
// With an empty Bucket the reference is returned unchanged; otherwise it is
// treated as an S3 object key and presigned.
type ImageConfig struct {
    Bucket    string
    Region    string
    Endpoint  string // optional; S3-compatible endpoint such as MinIO
    PathStyle bool
    Expiry    time.Duration
}

func LoadImageConfig() ImageConfig {
    return ImageConfig{
        Bucket:    os.Getenv("HALL_IMAGES_S3_BUCKET"),
        Region:    envStr("HALL_IMAGES_S3_REGION", "us-east-1"),
        Endpoint:  os.Getenv("HALL_IMAGES_S3_ENDPOINT"),
        PathStyle: envBool("HALL_IMAGES_S3_PATH_STYLE", false),
        Expiry:    envDur("HALL_IMAGES_URL_TTL", 15*time.Minute),
    }
}
