package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/tnqbao/gau-ads-orchestrator/infra"
)

type Repository struct {
	CreativeRepo       *CreativeRepository
	AccountUploadRepo  *AccountUploadRepository
	BatchGroupRepo     *BatchGroupRepository
	DuplicationJobRepo *DuplicationJobRepository
}

var repository *Repository

func InitRepository(infra *infra.Infra) *Repository {
	repository = newRepository(infra.Postgres.DB)
	return repository
}

func GetRepository() *Repository {
	if repository == nil {
		panic("repository not initialized")
	}
	return repository
}

func (r *Repository) WithTransaction(tx *gorm.DB) *Repository {
	return newRepository(tx)
}

func newRepository(db *gorm.DB) *Repository {
	return &Repository{
		CreativeRepo:       NewCreativeRepository(db),
		AccountUploadRepo:  NewAccountUploadRepository(db),
		BatchGroupRepo:     NewBatchGroupRepository(db),
		DuplicationJobRepo: NewDuplicationJobRepository(db),
	}
}

// isUniqueViolation reports a Postgres unique_violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
