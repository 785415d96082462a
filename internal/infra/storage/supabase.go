package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/supabase-community/supabase-go"
)

// SupabaseConfig identifies the project and bucket photos are uploaded to.
type SupabaseConfig struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
}

// Supabase uploads photos to a Supabase storage bucket.
type Supabase struct {
	client *supabase.Client
	bucket string
}

// NewSupabase constructs the Supabase-backed store.
func NewSupabase(cfg SupabaseConfig) (*Supabase, error) {
	client, err := supabase.NewClient(cfg.URL, cfg.ServiceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &Supabase{client: client, bucket: cfg.Bucket}, nil
}

// Save uploads one photo under key.
func (s *Supabase) Save(_ context.Context, key string, data []byte, _ string) error {
	if _, err := s.client.Storage.UploadFile(s.bucket, key, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("upload to supabase: %w", err)
	}
	return nil
}
