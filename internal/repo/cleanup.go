// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file implements the cascade removal that runs when a
// principal's account is deleted.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-messaging-backend/internal/domain"
)

// DeletePrincipalData removes every record referencing the principal:
// notifications addressed to them, history rows for messages they sent or
// received, and finally those messages. Replies that hang off a removed
// message are removed with it, so no parent_id can dangle afterwards.
//
// All deletions run inside one transaction. Ordering matters for the
// statements themselves (history and notifications reference messages), and
// the transaction guarantees no reader ever observes the intermediate
// states — either all rows are gone or none are.
func DeletePrincipalData(ctx context.Context, db *gorm.DB, principalID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Every message the principal sent or received, expanded with all
		// reply descendants. parent_id is a plain lookup key, so the walk is
		// an iterative frontier expansion over the flat table.
		var ids []string
		err := tx.Model(&domain.Message{}).
			Select("id").
			Where("sender_id = ? OR receiver_id = ?", principalID, principalID).
			Find(&ids).Error
		if err != nil {
			return err
		}

		doomed := make(map[string]struct{}, len(ids))
		frontier := ids
		for _, id := range ids {
			doomed[id] = struct{}{}
		}
		for len(frontier) > 0 {
			var children []string
			err := tx.Model(&domain.Message{}).
				Select("id").
				Where("parent_id IN ?", frontier).
				Find(&children).Error
			if err != nil {
				return err
			}
			frontier = frontier[:0]
			for _, id := range children {
				if _, seen := doomed[id]; seen {
					continue
				}
				doomed[id] = struct{}{}
				frontier = append(frontier, id)
			}
		}

		all := make([]string, 0, len(doomed))
		for id := range doomed {
			all = append(all, id)
		}

		// Notifications first: those addressed to the principal, then those
		// raised by any doomed message.
		if err := tx.Where("user_id = ?", principalID).
			Delete(&domain.Notification{}).Error; err != nil {
			return err
		}
		if len(all) == 0 {
			return nil
		}
		if err := tx.Where("message_id IN ?", all).
			Delete(&domain.Notification{}).Error; err != nil {
			return err
		}

		// Audit rows next.
		if err := tx.Where("message_id IN ?", all).
			Delete(&domain.MessageHistory{}).Error; err != nil {
			return err
		}

		// Finally the messages themselves.
		return tx.Where("id IN ?", all).Delete(&domain.Message{}).Error
	})
}
