package visit

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	puts    []s3.PutObjectInput
	deletes []s3.DeleteObjectInput
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, *params)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, *params)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StoreSave(t *testing.T) {
	api := &fakeS3{}
	store := NewS3Store(api, "clinivo-lab-reports", "https://files.clinivo.test/", zerolog.Nop())
	apptID := uuid.New()

	url, err := store.Save(context.Background(), apptID, Upload{
		OriginalName: "blood panel.pdf",
		ContentType:  "application/pdf",
		Data:         strings.NewReader("%PDF-"),
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, "https://files.clinivo.test/lab-reports/"+apptID.String()+"/"), url)
	assert.True(t, strings.HasSuffix(url, "-blood_panel.pdf"), url)

	require.Len(t, api.puts, 1)
	assert.Equal(t, "clinivo-lab-reports", *api.puts[0].Bucket)
	assert.Equal(t, "application/pdf", *api.puts[0].ContentType)

	body, err := io.ReadAll(api.puts[0].Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(body))
}

func TestS3StoreSaveDefaultsContentType(t *testing.T) {
	api := &fakeS3{}
	store := NewS3Store(api, "bucket", "https://files.test", zerolog.Nop())

	_, err := store.Save(context.Background(), uuid.New(), Upload{
		OriginalName: "scan",
		Data:         strings.NewReader("data"),
	})
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", *api.puts[0].ContentType)
}

func TestS3StoreSaveSanitizesName(t *testing.T) {
	api := &fakeS3{}
	store := NewS3Store(api, "bucket", "https://files.test", zerolog.Nop())

	url, err := store.Save(context.Background(), uuid.New(), Upload{
		OriginalName: "../..\\evil name?.pdf",
		Data:         strings.NewReader("x"),
	})
	require.NoError(t, err)
	assert.NotContains(t, url, "..")
	assert.NotContains(t, url, "?")
	assert.NotContains(t, url, " ")
}

func TestS3StoreDelete(t *testing.T) {
	api := &fakeS3{}
	store := NewS3Store(api, "bucket", "https://files.test", zerolog.Nop())

	err := store.Delete(context.Background(), "https://files.test/lab-reports/abc/1-scan.pdf")
	require.NoError(t, err)

	require.Len(t, api.deletes, 1)
	assert.Equal(t, "lab-reports/abc/1-scan.pdf", *api.deletes[0].Key)
}

func TestS3StoreDeleteForeignURL(t *testing.T) {
	api := &fakeS3{}
	store := NewS3Store(api, "bucket", "https://files.test", zerolog.Nop())

	err := store.Delete(context.Background(), "https://elsewhere.test/lab-reports/abc.pdf")
	assert.Error(t, err)
	assert.Empty(t, api.deletes)
}

func TestNoopStore(t *testing.T) {
	store := NoopStore{}

	_, err := store.Save(context.Background(), uuid.New(), Upload{OriginalName: "x"})
	assert.ErrorIs(t, err, ErrStorageDisabled)
	assert.NoError(t, store.Delete(context.Background(), "anything"))
}
