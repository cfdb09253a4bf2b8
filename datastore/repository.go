package datastore

import (
	"context"
	"strings"

	"github.com/huhn511/arche/data"
	"github.com/huhn511/arche/datastore/pool"
	"github.com/huhn511/arche/workerpool"
)

// listBatchSize is the page size used when streaming locales for a language.
const listBatchSize = 100

// LocaleRepository persists translated messages keyed by (code, lang).
type LocaleRepository interface {
	Svc() pool.Pool
	// Put creates or overwrites the message stored under (code, lang).
	// Concurrent writers race safely, the later write wins.
	Put(ctx context.Context, lang, code, message string) (*data.Locale, error)
	// GetByLangCode fetches one entry. A missing row surfaces as an error
	// recognised by data.ErrorIsNoRows.
	GetByLangCode(ctx context.Context, lang, code string) (*data.Locale, error)
	// ListByLang streams every entry for a language ordered by code.
	// Each call starts a fresh query, results arrive in batches.
	ListByLang(ctx context.Context, lang string) (workerpool.JobResultPipe[[]*data.Locale], error)
	// Delete removes the entry under (code, lang). Deleting an absent
	// entry is not an error.
	Delete(ctx context.Context, lang, code string) error
	Count(ctx context.Context) (int64, error)
	// Languages lists the distinct language tags present in the store.
	Languages(ctx context.Context) ([]string, error)
}

type localeRepository struct {
	dbPool  pool.Pool
	workMan workerpool.Manager
}

func NewLocaleRepository(dbPool pool.Pool, workMan workerpool.Manager) LocaleRepository {
	return &localeRepository{
		dbPool:  dbPool,
		workMan: workMan,
	}
}

func (lr *localeRepository) Svc() pool.Pool {
	return lr.dbPool
}

func (lr *localeRepository) Put(ctx context.Context, lang, code, message string) (*data.Locale, error) {
	entry := &data.Locale{
		Lang:    strings.TrimSpace(lang),
		Code:    strings.TrimSpace(code),
		Message: message,
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	// The existence check has to see the row a concurrent writer just
	// committed, so it reads the primary, not a possibly lagging replica.
	existing, err := lr.getForWrite(ctx, entry.Lang, entry.Code)
	if err != nil && !data.ErrorIsNoRows(err) {
		return nil, err
	}

	if err == nil {
		return lr.overwrite(ctx, existing, entry.Message)
	}

	err = lr.dbPool.DB(ctx, false).Create(entry).Error
	if err == nil {
		return entry, nil
	}
	if !data.ErrorIsConflict(err) {
		return nil, err
	}

	// Another writer inserted the same (code, lang) first. Retry as an
	// update so this write still lands.
	existing, err = lr.getForWrite(ctx, entry.Lang, entry.Code)
	if err != nil {
		return nil, err
	}
	return lr.overwrite(ctx, existing, entry.Message)
}

func (lr *localeRepository) getForWrite(ctx context.Context, lang, code string) (*data.Locale, error) {
	entry := &data.Locale{}
	err := lr.dbPool.DB(ctx, false).
		Where("lang = ? AND code = ?", lang, code).
		First(entry).Error
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (lr *localeRepository) overwrite(ctx context.Context, entry *data.Locale, message string) (*data.Locale, error) {
	entry.Message = message
	// Save writes every column so the BeforeUpdate version bump and
	// timestamp land in the database, not just in memory.
	err := lr.dbPool.DB(ctx, false).Save(entry).Error
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (lr *localeRepository) GetByLangCode(ctx context.Context, lang, code string) (*data.Locale, error) {
	entry := &data.Locale{}
	err := lr.dbPool.DB(ctx, true).
		Where("lang = ? AND code = ?", lang, code).
		First(entry).Error
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (lr *localeRepository) ListByLang(
	ctx context.Context,
	lang string,
) (workerpool.JobResultPipe[[]*data.Locale], error) {
	job := workerpool.NewJob(func(ctx context.Context, result workerpool.JobResultPipe[[]*data.Locale]) error {
		offset := 0
		for {
			var batch []*data.Locale
			err := lr.dbPool.DB(ctx, true).
				Where("lang = ?", lang).
				Order("code ASC").
				Offset(offset).
				Limit(listBatchSize).
				Find(&batch).Error
			if err != nil {
				return err
			}

			if len(batch) > 0 {
				if err = result.WriteResult(ctx, batch); err != nil {
					return err
				}
			}

			if len(batch) < listBatchSize {
				return nil
			}
			offset += len(batch)
		}
	})

	err := workerpool.SubmitJob(ctx, lr.workMan, job)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (lr *localeRepository) Delete(ctx context.Context, lang, code string) error {
	return lr.dbPool.DB(ctx, false).
		Where("lang = ? AND code = ?", lang, code).
		Delete(&data.Locale{}).Error
}

func (lr *localeRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := lr.dbPool.DB(ctx, true).Model(&data.Locale{}).Count(&count).Error
	return count, err
}

func (lr *localeRepository) Languages(ctx context.Context) ([]string, error) {
	var languages []string
	err := lr.dbPool.DB(ctx, true).
		Model(&data.Locale{}).
		Distinct("lang").
		Order("lang ASC").
		Pluck("lang", &languages).Error
	return languages, err
}
