package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/quoteajob/quoteajob/internal/apperr"
	"github.com/quoteajob/quoteajob/internal/metrics"
	"github.com/quoteajob/quoteajob/internal/models"
	"github.com/quoteajob/quoteajob/internal/scoring"
	"github.com/quoteajob/quoteajob/internal/storage"
)

// Rescore triggers, used as metric labels.
const (
	RescoreProfileEdit   = "profile_edit"
	RescoreInsuranceDoc  = "insurance_doc"
	RescoreEmailVerified = "email_verified"
	RescoreSignup        = "signup"
)

var allowedInsuranceTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
}

// InsuranceUpload is returned to the client, which PUTs the document to UploadURL.
type InsuranceUpload struct {
	UploadURL string       `json:"upload_url"`
	ObjectKey string       `json:"object_key"`
	Profile   *models.User `json:"profile"`
}

// IProfileService defines profile reads and edits. Every edit recomputes the derived scores.
type IProfileService interface {
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, fields models.ProfileFields) (*models.User, error)
	RequestInsuranceUpload(ctx context.Context, userID, filename, contentType string) (*InsuranceUpload, error)
}

type profileStorage interface {
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	UpdateProfileFields(ctx context.Context, userID string, fields models.ProfileFields) (*models.User, error)
	SetInsuranceDoc(ctx context.Context, userID, objectKey string) (*models.User, error)
	UpdateProfileDerivedScores(ctx context.Context, userID string, trustScore, profileCompletion int) error
}

type profileService struct {
	store   profileStorage
	storage storage.IDocumentStorage
	logger  *zap.Logger
}

// NewProfileService creates a new ProfileService.
func NewProfileService(s profileStorage, docs storage.IDocumentStorage, logger *zap.Logger) IProfileService {
	return &profileService{store: s, storage: docs, logger: logger}
}

func (s *profileService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return s.store.GetProfile(ctx, userID)
}

func (s *profileService) UpdateProfile(ctx context.Context, userID string, fields models.ProfileFields) (*models.User, error) {
	fields.Name = strings.TrimSpace(fields.Name)
	fields.CompanyName = strings.TrimSpace(fields.CompanyName)
	fields.TradeCategory = strings.TrimSpace(fields.TradeCategory)
	fields.Description = strings.TrimSpace(fields.Description)
	fields.Qualifications = strings.TrimSpace(fields.Qualifications)

	u, err := s.store.UpdateProfileFields(ctx, userID, fields)
	if err != nil {
		return nil, err
	}
	return rescore(ctx, s.store, s.logger, u, RescoreProfileEdit)
}

func (s *profileService) RequestInsuranceUpload(ctx context.Context, userID, filename, contentType string) (*InsuranceUpload, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, apperr.InvalidInput("Filename is required")
	}
	if !allowedInsuranceTypes[contentType] {
		return nil, apperr.InvalidInput("Unsupported content type %q", contentType)
	}
	if _, err := s.store.GetProfile(ctx, userID); err != nil {
		return nil, err
	}

	url, key, err := s.storage.GenerateInsuranceUploadURL(ctx, userID, filename, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to create insurance upload URL: %w", err)
	}
	u, err := s.store.SetInsuranceDoc(ctx, userID, key)
	if err != nil {
		return nil, err
	}
	u, err = rescore(ctx, s.store, s.logger, u, RescoreInsuranceDoc)
	if err != nil {
		return nil, err
	}
	return &InsuranceUpload{UploadURL: url, ObjectKey: key, Profile: u}, nil
}

type scoreWriter interface {
	UpdateProfileDerivedScores(ctx context.Context, userID string, trustScore, profileCompletion int) error
}

// rescore recomputes and persists u's derived scores, returning u with them applied.
func rescore(ctx context.Context, w scoreWriter, logger *zap.Logger, u *models.User, trigger string) (*models.User, error) {
	res, err := scoring.Score(u)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "failed to score profile")
	}
	if err := w.UpdateProfileDerivedScores(ctx, u.ID, res.TrustScore, res.ProfileCompletion); err != nil {
		return nil, err
	}
	u.TrustScore = res.TrustScore
	u.ProfileCompletion = res.ProfileCompletion
	metrics.ProfileRescores.WithLabelValues(trigger).Inc()
	logger.Debug("profile rescored",
		zap.String("user_id", u.ID),
		zap.String("trigger", trigger),
		zap.Int("trust_score", res.TrustScore),
		zap.Int("profile_completion", res.ProfileCompletion),
	)
	return u, nil
}
