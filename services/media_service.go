package services

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"log"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	fig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/staffhive/teamchat/config"
	errs "github.com/staffhive/teamchat/errors"
	"github.com/staffhive/teamchat/models"
)

const (
	MaxAttachmentSize = 10 * 1024 * 1024 // 10 MB
	thumbnailEdge     = 320
)

var audioExtensions = map[string]bool{
	".mp3": true,
	".wav": true,
	".m4a": true,
	".ogg": true,
}

// MediaService stores chat attachments in the blob store and classifies them
// coarsely by extension. Image attachments additionally get a thumbnail.
type MediaService interface {
	UploadAttachment(fileHeader *multipart.FileHeader) (*Attachment, error)
}

type mediaService struct {
	Config *config.Config
}

func NewMediaService(conf *config.Config) MediaService {
	return &mediaService{Config: conf}
}

// ClassifyAttachment maps a filename extension to the coarse attachment
// type: known audio extensions are audio, everything else is an image.
func ClassifyAttachment(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if audioExtensions[ext] {
		return models.AttachmentAudio
	}
	return models.AttachmentImage
}

func (m *mediaService) UploadAttachment(fileHeader *multipart.FileHeader) (*Attachment, error) {
	if fileHeader.Size > MaxAttachmentSize {
		return nil, errs.New("file size exceeds the maximum allowed size", 400)
	}

	attachmentType := ClassifyAttachment(fileHeader.Filename)

	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %v", err)
	}
	defer file.Close()

	ctx := context.TODO()
	svc, err := m.s3Client(ctx)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	fileKey := fmt.Sprintf("chat/%s_%s%s", attachmentType, uuid.New().String(), ext)

	_, err = svc.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.Config.AwsBucket),
		Key:         aws.String(fileKey),
		Body:        file,
		ACL:         "public-read",
		ContentType: aws.String(fileHeader.Header.Get("Content-Type")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload file to S3: %v", err)
	}

	attachment := &Attachment{
		URL:  m.objectURL(fileKey),
		Type: attachmentType,
	}

	if attachmentType == models.AttachmentImage {
		thumbURL, err := m.uploadThumbnail(ctx, svc, fileHeader, fileKey)
		if err != nil {
			// The full-size upload already succeeded; a missing thumbnail
			// is not worth failing the message over.
			log.Printf("thumbnail generation failed for %s: %v", fileKey, err)
		} else {
			attachment.ThumbnailURL = thumbURL
		}
	}
	return attachment, nil
}

func (m *mediaService) uploadThumbnail(ctx context.Context, svc *s3.Client, fileHeader *multipart.FileHeader, fileKey string) (string, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	img, err := imaging.Decode(file)
	if err != nil {
		return "", fmt.Errorf("decode image: %v", err)
	}
	thumb := imaging.Thumbnail(img, thumbnailEdge, thumbnailEdge, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, nil); err != nil {
		return "", fmt.Errorf("encode thumbnail: %v", err)
	}

	thumbKey := fmt.Sprintf("chat/thumbnails/%s.jpg", strings.TrimSuffix(filepath.Base(fileKey), filepath.Ext(fileKey)))
	_, err = svc.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.Config.AwsBucket),
		Key:         aws.String(thumbKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ACL:         "public-read",
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("upload thumbnail: %v", err)
	}
	return m.objectURL(thumbKey), nil
}

func (m *mediaService) s3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := fig.LoadDefaultConfig(ctx,
		fig.WithRegion(m.Config.AwsRegion),
		fig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(m.Config.AwsAccessKeyID, m.Config.AwsSecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %v", err)
	}
	return s3.NewFromConfig(cfg), nil
}

func (m *mediaService) objectURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", m.Config.AwsBucket, m.Config.AwsRegion, key)
}
