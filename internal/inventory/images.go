package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dhuni-backend/internal/apperr"
	"dhuni-backend/internal/config"
	"dhuni-backend/internal/lock"
	"dhuni-backend/internal/models"
	"dhuni-backend/internal/storage"
	"dhuni-backend/internal/tenant"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const imageLockTTL = 30 * time.Second

type Upload struct {
	FileName string
	Data     []byte
}

// ImageResult reports one file of a multi-file upload. Exactly one of Image
// and Error is set.
type ImageResult struct {
	FileName string     `json:"file_name"`
	Image    *ImageView `json:"image,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// lockImages serialises image writes for one item so that the primary flag
// and the per-item limit are checked against a stable set.
func (s *Service) lockImages(ctx context.Context, itemID uuid.UUID) (func(), error) {
	release, err := s.locker.Obtain(ctx, "item-images:"+itemID.String(), imageLockTTL)
	if errors.Is(err, lock.ErrNotObtained) {
		return nil, apperr.Conflict("images for this item are being changed, try again")
	}
	if err != nil {
		return nil, fmt.Errorf("lock item images: %w", err)
	}
	return release, nil
}

func (s *Service) requireItem(ctx context.Context, itemID uuid.UUID) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Item{}).Where("id = ?", itemID).Count(&count).Error; err != nil {
		return fmt.Errorf("load item: %w", err)
	}
	if count == 0 {
		return apperr.NotFound("item")
	}
	return nil
}

// AttachImages uploads each file independently. A failing file is reported
// in its result and never aborts the others.
func (s *Service) AttachImages(ctx context.Context, itemID uuid.UUID, uploads []Upload) ([]ImageResult, error) {
	scope, err := tenant.RequireWriter(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.requireItem(ctx, itemID); err != nil {
		return nil, err
	}
	release, err := s.lockImages(ctx, itemID)
	if err != nil {
		return nil, err
	}
	defer release()

	var existing []models.ItemImage
	if err := s.db.WithContext(ctx).Select("id", "is_primary").Where("item_id = ?", itemID).Find(&existing).Error; err != nil {
		return nil, fmt.Errorf("load item images: %w", err)
	}
	count := len(existing)
	hasPrimary := false
	for _, img := range existing {
		hasPrimary = hasPrimary || img.IsPrimary
	}

	results := make([]ImageResult, 0, len(uploads))
	for _, up := range uploads {
		res := ImageResult{FileName: up.FileName}
		if count >= s.limits.MaxImagesPerItem {
			res.Error = fmt.Sprintf("an item can have at most %d images", s.limits.MaxImagesPerItem)
			results = append(results, res)
			continue
		}
		img, err := s.storeImage(ctx, scope, itemID, up, !hasPrimary)
		if err != nil {
			res.Error = apperr.PublicMessage(err)
			config.LogError(config.GetLogger(), "inventory", "AttachImages", "upload image", logrus.Fields{
				"item_id":   itemID,
				"file_name": up.FileName,
			}, err)
		} else {
			view := imageView(*img)
			res.Image = &view
			count++
			hasPrimary = hasPrimary || img.IsPrimary
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Service) storeImage(ctx context.Context, scope tenant.Scope, itemID uuid.UUID, up Upload, primary bool) (*models.ItemImage, error) {
	mimeType, err := storage.ValidateImage(up.FileName, up.Data, s.limits.MaxUploadBytes)
	if err != nil {
		return nil, err
	}

	objectPath := storage.ItemObjectPath(scope.VendorID, itemID, up.FileName, mimeType)
	url, err := s.store.Upload(ctx, objectPath, up.Data, mimeType)
	if err != nil {
		return nil, err
	}
	uploaded := []string{objectPath}

	img := models.ItemImage{
		ItemID:    itemID,
		URL:       url,
		Path:      objectPath,
		FileName:  up.FileName,
		FileSize:  int64(len(up.Data)),
		MimeType:  mimeType,
		IsPrimary: primary,
	}

	if storage.CanThumbnail(mimeType) {
		thumbPath, thumbURL, err := s.storeThumbnail(ctx, objectPath, up.Data)
		if err != nil {
			config.GetLogger().WithFields(logrus.Fields{
				"item_id": itemID,
				"path":    objectPath,
			}).Warnf("[inventory.thumbnail] skipped: %v", err)
		} else {
			img.ThumbnailPath = thumbPath
			img.ThumbnailURL = thumbURL
			uploaded = append(uploaded, thumbPath)
		}
	}

	if err := s.db.WithContext(ctx).Create(&img).Error; err != nil {
		s.removeObjects(ctx, uploaded...)
		return nil, fmt.Errorf("save image: %w", err)
	}
	return &img, nil
}

func (s *Service) storeThumbnail(ctx context.Context, objectPath string, data []byte) (string, string, error) {
	thumb, err := storage.Thumbnail(data)
	if err != nil {
		return "", "", err
	}
	thumbPath := storage.ThumbnailPath(objectPath)
	thumbURL, err := s.store.Upload(ctx, thumbPath, thumb, "image/jpeg")
	if err != nil {
		return "", "", err
	}
	return thumbPath, thumbURL, nil
}

func (s *Service) removeObjects(ctx context.Context, paths ...string) {
	for _, p := range paths {
		if err := s.store.Remove(ctx, p); err != nil {
			config.LogError(config.GetLogger(), "inventory", "removeObjects", "cleanup object", p, err)
		}
	}
}

func (s *Service) loadImage(tx *gorm.DB, itemID, imageID uuid.UUID) (*models.ItemImage, error) {
	var img models.ItemImage
	err := tx.First(&img, "id = ? AND item_id = ?", imageID, itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("image")
	}
	if err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	return &img, nil
}

// SetPrimaryImage clears the current primary and sets imageID in one
// transaction.
func (s *Service) SetPrimaryImage(ctx context.Context, itemID, imageID uuid.UUID) (*ImageView, error) {
	if _, err := tenant.RequireWriter(ctx); err != nil {
		return nil, err
	}
	release, err := s.lockImages(ctx, itemID)
	if err != nil {
		return nil, err
	}
	defer release()

	var img *models.ItemImage
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		img, err = s.loadImage(tx, itemID, imageID)
		if err != nil {
			return err
		}
		if img.IsPrimary {
			return nil
		}
		if err := tx.Model(&models.ItemImage{}).
			Where("item_id = ? AND is_primary = ?", itemID, true).
			Update("is_primary", false).Error; err != nil {
			return fmt.Errorf("clear primary image: %w", err)
		}
		if err := tx.Model(&models.ItemImage{}).
			Where("id = ?", img.ID).
			Update("is_primary", true).Error; err != nil {
			return fmt.Errorf("set primary image: %w", err)
		}
		img.IsPrimary = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	view := imageView(*img)
	return &view, nil
}

// DeleteImage removes the row and then its objects. When the primary image
// goes, the oldest remaining image is promoted. Object removal failures are
// logged and leave an orphaned object, never a row without its file.
func (s *Service) DeleteImage(ctx context.Context, itemID, imageID uuid.UUID) error {
	if _, err := tenant.RequireWriter(ctx); err != nil {
		return err
	}
	release, err := s.lockImages(ctx, itemID)
	if err != nil {
		return err
	}
	defer release()

	var img *models.ItemImage
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		img, err = s.loadImage(tx, itemID, imageID)
		if err != nil {
			return err
		}
		if err := tx.Delete(&models.ItemImage{}, "id = ?", img.ID).Error; err != nil {
			return fmt.Errorf("delete image: %w", err)
		}
		if !img.IsPrimary {
			return nil
		}
		var next models.ItemImage
		err = tx.Where("item_id = ?", itemID).Order("created_at ASC").First(&next).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil
		case err != nil:
			return fmt.Errorf("load next image: %w", err)
		}
		if err := tx.Model(&models.ItemImage{}).Where("id = ?", next.ID).Update("is_primary", true).Error; err != nil {
			return fmt.Errorf("promote image: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	paths := []string{img.Path}
	if img.ThumbnailPath != "" {
		paths = append(paths, img.ThumbnailPath)
	}
	s.removeObjects(ctx, paths...)
	return nil
}
