// Package updatelog persists the document's replication log and its
// checkpoints. Replaying the newest checkpoint plus every later update
// restores the document after a restart; the compaction job truncates
// updates a durable checkpoint already covers.
package updatelog

import (
	"gorm.io/gorm"

	"github.com/vrwarp/versicle/internal/database"
	"github.com/vrwarp/versicle/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Append adds one update row and returns its assigned sequence number.
func (r *Repository) Append(rec *entities.UpdateRecord) (uint64, error) {
	if err := r.db.Create(rec).Error; err != nil {
		return 0, database.Classify(err)
	}
	return rec.Seq, nil
}

// Since returns every update with Seq > seq in log order.
func (r *Repository) Since(seq uint64) ([]entities.UpdateRecord, error) {
	var recs []entities.UpdateRecord
	err := r.db.Where("seq > ?", seq).Order("seq ASC").Find(&recs).Error
	if err != nil {
		return nil, database.Classify(err)
	}
	return recs, nil
}

// LastSeq returns the highest sequence number in the log, 0 when empty.
func (r *Repository) LastSeq() (uint64, error) {
	var rec entities.UpdateRecord
	err := r.db.Order("seq DESC").First(&rec).Error
	if database.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, database.Classify(err)
	}
	return rec.Seq, nil
}

// LatestCheckpoint returns the newest checkpoint, or nil when none exists.
func (r *Repository) LatestCheckpoint() (*entities.CheckpointRecord, error) {
	var rec entities.CheckpointRecord
	err := r.db.Order("seq DESC").First(&rec).Error
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Classify(err)
	}
	return &rec, nil
}

// Checkpoint stores a snapshot covering every update up to seq, truncates
// the covered updates and drops all but the newest keep checkpoints, in
// one transaction.
func (r *Repository) Checkpoint(seq uint64, payload []byte, keep int) error {
	if keep < 1 {
		keep = 1
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		rec := entities.CheckpointRecord{Seq: seq, Payload: payload}
		// Re-checkpointing at an unchanged seq replaces the snapshot.
		if err := tx.Where("seq = ?", seq).Delete(&entities.CheckpointRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		if err := tx.Where("seq <= ?", seq).Delete(&entities.UpdateRecord{}).Error; err != nil {
			return err
		}

		var keepers []entities.CheckpointRecord
		if err := tx.Order("seq DESC").Limit(keep).Find(&keepers).Error; err != nil {
			return err
		}
		if len(keepers) == keep {
			oldest := keepers[len(keepers)-1].Seq
			if err := tx.Where("seq < ?", oldest).Delete(&entities.CheckpointRecord{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return database.Classify(err)
}
