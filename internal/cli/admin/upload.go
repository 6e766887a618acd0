package admin

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/agentkb/internal/config"
	"github.com/cloo-solutions/agentkb/internal/domain"
	"github.com/cloo-solutions/agentkb/internal/storage"
)

func newS3Client(ctx context.Context, cfg *config.Config) (*storage.S3Client, error) {
	client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	return client, nil
}

// UploadCmd stores a local file as the source object of an object document.
func UploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file> [key]",
		Short: "Upload a document source file to object storage",
		Long: `Upload a local file to the configured bucket under the organization's
namespace. The key defaults to the file name and is stored as <org_id>/<key>;
use the printed key as the source_url of a document with source_type "object".`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runUpload,
	}

	cmd.Flags().StringP("org", "o", "", "Organization ID or name (required)")
	cmd.Flags().String("content-type", "", "Content type (detected when empty)")
	cmd.Flags().Bool("force", false, "Overwrite an existing object")
	cmd.MarkFlagRequired("org")

	return cmd
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	orgRef, _ := cmd.Flags().GetString("org")
	contentType, _ := cmd.Flags().GetString("content-type")
	force, _ := cmd.Flags().GetBool("force")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasS3() {
		return fmt.Errorf("object storage is not configured (set AGENTKB_S3_ENDPOINT and credentials)")
	}

	body, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	name := filepath.Base(args[0])
	if len(args) == 2 {
		name = args[1]
	}
	if contentType == "" {
		contentType = detectContentType(args[0], body)
	}

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	org, err := newAuthService(pool).ResolveOrg(ctx, orgRef)
	if err != nil {
		return fmt.Errorf("organization %q: %w", orgRef, err)
	}
	key, err := orgObjectKey(org.ID, name)
	if err != nil {
		return err
	}

	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return err
	}

	if !force {
		if meta, err := client.HeadObject(ctx, key); err == nil {
			return fmt.Errorf("object %q already exists (%d bytes); use --force to overwrite", key, meta.ContentLength)
		}
	}

	if err := client.PutObject(ctx, key, contentType, body); err != nil {
		return err
	}

	meta, err := client.HeadObject(ctx, key)
	if err != nil {
		return fmt.Errorf("upload not visible: %w", err)
	}
	fmt.Printf("Uploaded %s to %s/%s (%d bytes, %s)\n", args[0], cfg.S3Bucket, key, meta.ContentLength, meta.ContentType)
	return nil
}

// orgObjectKey places name inside the organization's object namespace.
func orgObjectKey(orgID, name string) (string, error) {
	key := domain.ObjectKeyPrefix(orgID) + strings.TrimPrefix(name, "/")
	if !domain.ObjectKeyOwnedBy(key, orgID) || key == domain.ObjectKeyPrefix(orgID) {
		return "", fmt.Errorf("invalid object key %q", name)
	}
	return key, nil
}

func detectContentType(path string, body []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return http.DetectContentType(body)
}
