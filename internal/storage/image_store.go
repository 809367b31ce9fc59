package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ImageStore は投稿・コメント添付画像の保存先。
// 呼び出し側は公開URLだけを扱い、オブジェクト名の割り当てはストア側が持つ。
type ImageStore interface {
	// Upload は画像を保存し、公開URLを返す。
	Upload(ctx context.Context, fileName string, contentType string, file io.Reader, size int64) (url string, err error)
	// Remove は公開URLに対応する保存済み画像を削除する。
	Remove(ctx context.Context, imageURL string) error
}

// allowedImageTypes は受け付けるContent-Type。
// 判定はmultipartヘッダではなく実データのスニッフィング結果で行うこと。
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// IsAllowedImageType はcontentTypeが受け付け可能な画像かを返す。
func IsAllowedImageType(contentType string) bool {
	_, ok := allowedImageTypes[contentType]
	return ok
}

// MinioImageStore はMinIO（S3互換）を背後に持つ画像ストア。
type MinioImageStore struct {
	client   *minio.Client
	bucket   string
	endpoint string
	useSSL   bool
}

// NewMinioImageStore はMinIOに接続し、バケットがなければ作成する。
func NewMinioImageStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioImageStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("MinIOへの接続に失敗しました: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("バケットの確認に失敗しました: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("バケットの作成に失敗しました: %w", err)
		}
	}

	return &MinioImageStore{
		client:   client,
		bucket:   bucket,
		endpoint: endpoint,
		useSSL:   useSSL,
	}, nil
}

// Upload は画像を年月別のオブジェクト名で保存し、公開URLを返す。
// 元のファイル名は信用せず、拡張子はContent-Typeから決める。
func (s *MinioImageStore) Upload(ctx context.Context, fileName string, contentType string, file io.Reader, size int64) (string, error) {
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return "", fmt.Errorf("対応していない画像形式です: %s", contentType)
	}

	now := time.Now().UTC()
	objectName := fmt.Sprintf("posts/%d/%02d/%s%s", now.Year(), now.Month(), uuid.New().String(), ext)

	_, err := s.client.PutObject(ctx, s.bucket, objectName, file, size,
		minio.PutObjectOptions{
			ContentType: contentType,
			UserMetadata: map[string]string{
				"original-filename": filepath.Base(fileName),
				"uploaded-at":       now.Format(time.RFC3339),
			},
		})
	if err != nil {
		return "", fmt.Errorf("画像のアップロードに失敗しました: %w", err)
	}

	return s.publicURL(objectName), nil
}

// Remove は公開URLに対応する保存済み画像を削除する。
// このストアが発行していないURLは対象外として無視する。
func (s *MinioImageStore) Remove(ctx context.Context, imageURL string) error {
	objectName, ok := s.objectName(imageURL)
	if !ok {
		return nil
	}
	err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("画像の削除に失敗しました: %w", err)
	}
	return nil
}

// objectName は公開URLからオブジェクト名を逆引きする。
func (s *MinioImageStore) objectName(imageURL string) (string, bool) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return "", false
	}
	if u.Host != s.endpoint {
		return "", false
	}
	name := strings.TrimPrefix(u.Path, "/"+s.bucket+"/")
	if name == u.Path || name == "" {
		return "", false
	}
	return name, true
}

func (s *MinioImageStore) publicURL(objectName string) string {
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return scheme + "://" + s.endpoint + "/" + s.bucket + "/" + strings.TrimPrefix(objectName, "/")
}

// compile-time interface check
var _ ImageStore = (*MinioImageStore)(nil)
