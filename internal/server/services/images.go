package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/possync/internal/common"
	"github.com/dmitrijs2005/possync/internal/models"
	"github.com/dmitrijs2005/possync/internal/server/config"
	"github.com/dmitrijs2005/possync/internal/server/repositories/repomanager"
)

const presignExpiry = 15 * time.Minute

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// ImageService hands out presigned URLs for product images kept in an
// S3-compatible bucket. Image bytes never pass through the gRPC server.
type ImageService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *config.Config
}

func NewImageService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *ImageService {
	return &ImageService{db: db, repomanager: m, config: cfg}
}

func ownerImagePrefix(ownerID string) string {
	return fmt.Sprintf("images/%s/", ownerID)
}

func imageKey(ownerID, productID string) string {
	return fmt.Sprintf("%s%s/%s", ownerImagePrefix(ownerID), productID, uuid.NewString())
}

func (s *ImageService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

// PresignUpload returns a fresh object key under the owner's prefix and a
// PUT URL for it. The product must exist and belong to the owner.
func (s *ImageService) PresignUpload(ctx context.Context, ownerID, productID, contentType string) (string, string, error) {
	if productID == "" {
		return "", "", fmt.Errorf("%w: product id is required", common.ErrValidation)
	}
	if _, err := s.repomanager.Records(s.db).Get(ctx, models.TableProducts, ownerID, productID); err != nil {
		return "", "", err
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", "", err
	}

	bucket := s.config.S3Bucket
	key := imageKey(ownerID, productID)
	in := &s3.PutObjectInput{Bucket: &bucket, Key: &key}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	req, err := presignPutObject(presignClient, ctx, in, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", "", err
	}
	return key, req.URL, nil
}

// PresignDownload returns a GET URL for a key inside the owner's prefix.
func (s *ImageService) PresignDownload(ctx context.Context, ownerID, key string) (string, error) {
	if !strings.HasPrefix(key, ownerImagePrefix(ownerID)) {
		return "", fmt.Errorf("%w: image key outside owner prefix", common.ErrPermissionDenied)
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket
	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
