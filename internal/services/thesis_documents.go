package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/access"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/ls1intum/thesis-management-sub000/internal/storage"
	"github.com/ls1intum/thesis-management-sub000/pkg/response"
	"gorm.io/gorm"
)

// Upload is a document handed to the thesis workflow
type Upload struct {
	Name string
	Data []byte
}

// Document is a stored document returned for download
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

// storeUpload writes the blob and registers its removal should the transaction fail
func (s *ThesisService) storeUpload(ctx context.Context, fx *sideEffects, upload *Upload, kind storage.Kind) (string, error) {
	if s.deps.Store == nil {
		return "", fmt.Errorf("document storage is not configured")
	}
	handle, err := s.deps.Store.Store(ctx, upload.Data, s.deps.MaxUploadBytes, kind)
	if err != nil {
		return "", uploadError(err)
	}
	fx.onRollback("delete stored upload", func(ctx context.Context) error {
		return s.deps.Store.Delete(ctx, handle)
	})
	return handle, nil
}

// deleteStored removes a blob after commit
func (s *ThesisService) deleteStored(fx *sideEffects, handle string) {
	if s.deps.Store == nil || handle == "" {
		return
	}
	fx.add("delete stored file", func(ctx context.Context) error {
		return s.deps.Store.Delete(ctx, handle)
	})
}

// UploadProposal attaches a new proposal PDF; allowed in PROPOSAL and, for corrections, in WRITING
func (s *ThesisService) UploadProposal(ctx context.Context, actor *models.User, id uuid.UUID, upload *Upload) (*models.Thesis, error) {
	return s.mutate(ctx, actor, id, access.Student, func(tx *gorm.DB, thesis *models.Thesis, fx *sideEffects, now time.Time) error {
		if thesis.State != models.ThesisStateProposal && thesis.State != models.ThesisStateWriting {
			return invalid("proposal can only be uploaded in the proposal or writing phase")
		}
		handle, err := s.storeUpload(ctx, fx, upload, storage.KindPDF)
		if err != nil {
			return err
		}

		proposal := models.ThesisProposal{
			ThesisID:    thesis.ID,
			Filename:    handle,
			UploadName:  upload.Name,
			CreatedByID: actor.ID,
			CreatedAt:   now,
		}
		if err := tx.Create(&proposal).Error; err != nil {
			return fmt.Errorf("failed to save proposal: %w", err)
		}
		thesis.Proposals = append(thesis.Proposals, proposal)

		fx.notify(s.deps.Notifier, thesisNotification(NotifyProposalUploaded, thesis, actor, "A proposal was uploaded", now,
			models.RoleAdvisor, models.RoleSupervisor))
		return nil
	})
}

// AcceptProposal approves the latest proposal and moves PROPOSAL to WRITING
func (s *ThesisService) AcceptProposal(ctx context.Context, actor *models.User, id uuid.UUID) (*models.Thesis, error) {
	return s.mutate(ctx, actor, id, access.Advisor, func(tx *gorm.DB, thesis *models.Thesis, fx *sideEffects, now time.Time) error {
		if thesis.State != models.ThesisStateProposal && thesis.State != models.ThesisStateWriting {
			return invalid("proposal can only be accepted in the proposal or writing phase")
		}
		proposal := thesis.LatestProposal()
		if proposal == nil {
			return response.NewNotFound("no proposal added")
		}
		if proposal.ApprovedAt != nil {
			return invalid("proposal is already accepted")
		}

		err := tx.Model(&models.ThesisProposal{}).Where("id = ?", proposal.ID).Updates(map[string]interface{}{
			"approved_at":    now,
			"approved_by_id": actor.ID,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to accept proposal: %w", err)
		}
		proposal.ApprovedAt = &now
		approver := actor.ID
		proposal.ApprovedByID = &approver

		if thesis.State == models.ThesisStateProposal {
			if err := transitionTx(tx, thesis, models.ThesisStateWriting, now); err != nil {
				return err
			}
		}
		fx.notify(s.deps.Notifier, thesisNotification(NotifyProposalAccepted, thesis, actor, "The proposal was accepted", now))
		return nil
	})
}

// DeleteProposal removes a proposal that has not been approved
func (s *ThesisService) DeleteProposal(ctx context.Context, actor *models.User, thesisID, proposalID uuid.UUID) (*models.Thesis, error) {
	return s.mutate(ctx, actor, thesisID, access.Student, func(tx *gorm.DB, thesis *models.Thesis, fx *sideEffects, now time.Time) error {
		idx := -1
		for i := range thesis.Proposals {
			if thesis.Proposals[i].ID == proposalID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return notFoundOr(gorm.ErrRecordNotFound, "proposal")
		}
		proposal := thesis.Proposals[idx]
		if proposal.ApprovedAt != nil {
			return invalid("an accepted proposal cannot be deleted")
		}

		if err := tx.Where("id = ?", proposal.ID).Delete(&models.ThesisProposal{}).Error; err != nil {
			return fmt.Errorf("failed to delete proposal: %w", err)
		}
		thesis.Proposals = append(thesis.Proposals[:idx], thesis.Proposals[idx+1:]...)
		s.deleteStored(fx, proposal.Filename)
		return nil
	})
}

var thesisFileKinds = map[string]storage.Kind{
	models.ThesisFileTypeThesis:       storage.KindPDF,
	models.ThesisFileTypeProposal:     storage.KindPDF,
	models.ThesisFileTypePresentation: storage.KindAny,
	models.ThesisFileTypeAttachment:   storage.KindAny,
}

// UploadThesisFile stores a typed thesis document while the thesis is active
func (s *ThesisService) UploadThesisFile(ctx context.Context, actor *models.User, id uuid.UUID, fileType string, upload *Upload) (*models.Thesis, error) {
	kind, ok := thesisFileKinds[fileType]
	if !ok {
		return nil, invalid("invalid file type")
	}
	return s.mutate(ctx, actor, id, access.Student, func(tx *gorm.DB, thesis *models.Thesis, fx *sideEffects, now time.Time) error {
		if thesis.IsTerminal() {
			return invalid("files cannot be uploaded to a completed thesis")
		}
		handle, err := s.storeUpload(ctx, fx, upload, kind)
		if err != nil {
			return err
		}

		file := models.ThesisFile{
			ThesisID:     thesis.ID,
			Type:         fileType,
			Filename:     handle,
			UploadName:   upload.Name,
			UploadedByID: actor.ID,
			UploadedAt:   now,
		}
		if err := tx.Create(&file).Error; err != nil {
			return fmt.Errorf("failed to save thesis file: %w", err)
		}
		thesis.Files = append(thesis.Files, file)
		return nil
	})
}

func (s *ThesisService) DeleteThesisFile(ctx context.Context, actor *models.User, thesisID, fileID uuid.UUID) (*models.Thesis, error) {
	return s.mutate(ctx, actor, thesisID, access.Student, func(tx *gorm.DB, thesis *models.Thesis, fx *sideEffects, now time.Time) error {
		if thesis.IsTerminal() {
			return invalid("files of a completed thesis cannot be deleted")
		}
		idx := -1
		for i := range thesis.Files {
			if thesis.Files[i].ID == fileID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return notFoundOr(gorm.ErrRecordNotFound, "file")
		}
		file := thesis.Files[idx]

		if err := tx.Where("id = ?", file.ID).Delete(&models.ThesisFile{}).Error; err != nil {
			return fmt.Errorf("failed to delete thesis file: %w", err)
		}
		thesis.Files = append(thesis.Files[:idx], thesis.Files[idx+1:]...)
		s.deleteStored(fx, file.Filename)
		return nil
	})
}

// readable loads the thesis and checks that actor reaches need
func (s *ThesisService) readable(ctx context.Context, actor *models.User, id uuid.UUID, need access.Level) (*models.Thesis, error) {
	thesis, err := loadThesis(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if err := access.Require(access.ThesisLevel(actor, thesis), need, "thesis"); err != nil {
		return nil, err
	}
	return thesis, nil
}

func (s *ThesisService) loadDocument(ctx context.Context, handle, name string) (*Document, error) {
	if s.deps.Store == nil {
		return nil, fmt.Errorf("document storage is not configured")
	}
	data, err := s.deps.Store.Load(ctx, handle)
	if err != nil {
		return nil, uploadError(err)
	}
	return &Document{Name: name, ContentType: storage.ContentType(data), Data: data}, nil
}

func (s *ThesisService) DownloadProposal(ctx context.Context, actor *models.User, thesisID, proposalID uuid.UUID) (*Document, error) {
	thesis, err := s.readable(ctx, actor, thesisID, access.Student)
	if err != nil {
		return nil, err
	}
	for _, p := range thesis.Proposals {
		if p.ID == proposalID {
			return s.loadDocument(ctx, p.Filename, p.UploadName)
		}
	}
	return nil, notFoundOr(gorm.ErrRecordNotFound, "proposal")
}

// DownloadThesisFile returns a thesis file; the final thesis of a public finished thesis is readable by anyone with read access
func (s *ThesisService) DownloadThesisFile(ctx context.Context, actor *models.User, thesisID, fileID uuid.UUID) (*Document, error) {
	thesis, err := s.readable(ctx, actor, thesisID, access.Read)
	if err != nil {
		return nil, err
	}
	for _, f := range thesis.Files {
		if f.ID != fileID {
			continue
		}
		if access.ThesisLevel(actor, thesis) < access.Student && f.Type != models.ThesisFileTypeThesis {
			return nil, forbidden("you do not have student access to this thesis")
		}
		return s.loadDocument(ctx, f.Filename, f.UploadName)
	}
	return nil, notFoundOr(gorm.ErrRecordNotFound, "file")
}
