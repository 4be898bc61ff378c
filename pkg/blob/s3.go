package blob

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
)

// Downloader is the part of s3manager.Downloader used here.
type Downloader interface {
	DownloadWithContext(ctx aws.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*s3manager.Downloader)) (int64, error)
}

type S3 struct {
	Bucket     string
	Downloader Downloader
}

func NewS3(bucket string, d Downloader) *S3 {
	return &S3{Bucket: bucket, Downloader: d}
}

func (s *S3) Fetch(ctx context.Context, path string, w io.Writer) error {
	_, err := s.Downloader.DownloadWithContext(ctx, sequentialWriterAt{w}, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(path),
	}, func(d *s3manager.Downloader) {
		// Parts must arrive in order for sequentialWriterAt.
		d.Concurrency = 1
	})
	if aerr, ok := err.(interface{ Code() string }); ok && aerr.Code() == request.CanceledErrorCode {
		return ctx.Err()
	}
	return errors.Wrapf(err, "downloading s3://%s/%s", s.Bucket, path)
}

// sequentialWriterAt ignores offsets; only correct with a single
// download goroutine.
type sequentialWriterAt struct {
	w io.Writer
}

func (s sequentialWriterAt) WriteAt(p []byte, off int64) (int, error) {
	return s.w.Write(p)
}
