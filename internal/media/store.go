// Package media stores avatars and chat attachments in object storage.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/storage"
)

// Storage folders.
const (
	FolderAvatars     = "avatars"
	FolderAttachments = "attachments"
)

const (
	sniffLen          = 3072
	avatarJPEGQuality = 85
)

var (
	ErrFileTooLarge = fmt.Errorf("file too large: %w", domain.ErrValidation)
	ErrEmptyFile    = fmt.Errorf("file is empty: %w", domain.ErrValidation)
)

// Upload is one file to store.
type Upload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// FromFileHeader adapts a multipart file.
func FromFileHeader(fh *multipart.FileHeader) Upload {
	return Upload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// FromFileHeaders adapts a list of multipart files.
func FromFileHeaders(fhs []*multipart.FileHeader) []Upload {
	out := make([]Upload, 0, len(fhs))
	for _, fh := range fhs {
		out = append(out, FromFileHeader(fh))
	}
	return out
}

type Store struct {
	storage    storage.Storage
	maxSize    int64
	urlExpiry  time.Duration
	avatarSize int
}

func NewStore(s storage.Storage, maxSize int64, urlExpiry time.Duration) *Store {
	return &Store{storage: s, maxSize: maxSize, urlExpiry: urlExpiry}
}

// WithAvatarSize makes PutAvatar crop decodable images to a px by px JPEG.
// Zero keeps avatars as uploaded.
func (s *Store) WithAvatarSize(px int) *Store {
	s.avatarSize = px
	return s
}

// MaxSize is the per-file limit in bytes.
func (s *Store) MaxSize() int64 {
	return s.maxSize
}

func (s *Store) check(u Upload) error {
	if u.Size == 0 {
		return ErrEmptyFile
	}
	if s.maxSize > 0 && u.Size > s.maxSize {
		return fmt.Errorf("%s: %w", u.Filename, ErrFileTooLarge)
	}
	return nil
}

// Put stores u under folder with a fresh key.
func (s *Store) Put(ctx context.Context, folder string, u Upload) (domain.Asset, error) {
	if err := s.check(u); err != nil {
		return domain.Asset{}, err
	}

	f, err := u.Open()
	if err != nil {
		return domain.Asset{}, fmt.Errorf("open %s: %w", u.Filename, err)
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return domain.Asset{}, fmt.Errorf("read %s: %w", u.Filename, err)
	}
	head = head[:n]
	mt := mimetype.Detect(head)

	key := path.Join(folder, uuid.New().String()+extension(u.Filename, mt))
	return s.store(ctx, key, io.MultiReader(bytes.NewReader(head), f), u.Size, mt.String())
}

// PutAvatar stores a profile picture. Images that decode are center-cropped
// to a square JPEG; anything else is stored like an attachment.
func (s *Store) PutAvatar(ctx context.Context, u Upload) (domain.Asset, error) {
	if s.avatarSize <= 0 {
		return s.Put(ctx, FolderAvatars, u)
	}
	if err := s.check(u); err != nil {
		return domain.Asset{}, err
	}

	f, err := u.Open()
	if err != nil {
		return domain.Asset{}, fmt.Errorf("open %s: %w", u.Filename, err)
	}
	data, err := io.ReadAll(io.LimitReader(f, u.Size))
	f.Close()
	if err != nil {
		return domain.Asset{}, fmt.Errorf("read %s: %w", u.Filename, err)
	}

	mt := mimetype.Detect(data)
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Str("mime", mt.String()).Msg("avatar is not a decodable image, storing as uploaded")
		key := path.Join(FolderAvatars, uuid.New().String()+extension(u.Filename, mt))
		return s.store(ctx, key, bytes.NewReader(data), int64(len(data)), mt.String())
	}

	var buf bytes.Buffer
	thumb := imaging.Fill(img, s.avatarSize, s.avatarSize, imaging.Center, imaging.Lanczos)
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(avatarJPEGQuality)); err != nil {
		return domain.Asset{}, fmt.Errorf("encode %s: %w", u.Filename, err)
	}
	key := path.Join(FolderAvatars, uuid.New().String()+".jpg")
	return s.store(ctx, key, &buf, int64(buf.Len()), "image/jpeg")
}

func (s *Store) store(ctx context.Context, key string, body io.Reader, size int64, contentType string) (domain.Asset, error) {
	if err := s.storage.Write(ctx, key, body, size, contentType); err != nil {
		return domain.Asset{}, fmt.Errorf("store %s: %w", key, err)
	}
	url, err := s.storage.GetURL(ctx, key, s.urlExpiry)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("url for %s: %w", key, err)
	}
	return domain.Asset{PublicID: key, URL: url}, nil
}

// PutAll stores uploads concurrently and keeps their order. If any upload
// fails the ones already stored are removed.
func (s *Store) PutAll(ctx context.Context, folder string, uploads []Upload) ([]domain.Asset, error) {
	assets := make([]domain.Asset, len(uploads))

	g, gctx := errgroup.WithContext(ctx)
	for i, u := range uploads {
		g.Go(func() error {
			asset, err := s.Put(gctx, folder, u)
			if err != nil {
				return err
			}
			assets[i] = asset
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		stored := make([]domain.Asset, 0, len(assets))
		for _, a := range assets {
			if a.PublicID != "" {
				stored = append(stored, a)
			}
		}
		s.DeleteAll(context.WithoutCancel(ctx), stored)
		return nil, err
	}
	return assets, nil
}

// DeleteAll removes assets, logging failures.
func (s *Store) DeleteAll(ctx context.Context, assets []domain.Asset) {
	l := log.Ctx(ctx)
	for _, a := range assets {
		if a.PublicID == "" {
			continue
		}
		if err := s.storage.Delete(ctx, a.PublicID); err != nil {
			l.Warn().Err(err).Str("key", a.PublicID).Msg("failed to delete stored object")
		}
	}
}

func extension(filename string, mt *mimetype.MIME) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || len(ext) > 10 {
		ext = mt.Extension()
	}
	return ext
}
