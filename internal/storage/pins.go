package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PinModel pins modelName on instanceID at the end of the pin order.
// Pinning an already pinned model is a no-op that returns the existing
// pin ID.
func (s *Store) PinModel(ctx context.Context, modelName, instanceID string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin pin model: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM model_pin WHERE model_name = ? AND instance_id = ?",
		modelName, instanceID).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("check existing pin: %w", err)
	}

	var maxOrder sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		"SELECT MAX(pin_order) FROM model_pin WHERE instance_id = ?", instanceID).Scan(&maxOrder); err != nil {
		return "", fmt.Errorf("read max pin order: %w", err)
	}
	// Pin orders are dense and 1-based.
	next := 1
	if maxOrder.Valid {
		next = int(maxOrder.Int64) + 1
	}

	id := NewID()
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO model_pin (id, model_name, instance_id, pin_order) VALUES (?, ?, ?, ?)",
		id, modelName, instanceID, next); err != nil {
		return "", fmt.Errorf("insert model pin: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit pin model: %w", err)
	}
	return id, nil
}

// UnpinModel removes a pin and closes the gap so pin orders stay
// contiguous from one.
func (s *Store) UnpinModel(ctx context.Context, modelName, instanceID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unpin model: %w", err)
	}
	defer tx.Rollback()

	var order int
	err = tx.QueryRowContext(ctx,
		"SELECT pin_order FROM model_pin WHERE model_name = ? AND instance_id = ?",
		modelName, instanceID).Scan(&order)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read pin order: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM model_pin WHERE model_name = ? AND instance_id = ?",
		modelName, instanceID); err != nil {
		return fmt.Errorf("delete model pin: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE model_pin SET pin_order = pin_order - 1 WHERE instance_id = ? AND pin_order > ?",
		instanceID, order); err != nil {
		return fmt.Errorf("renumber pin orders: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit unpin model: %w", err)
	}
	return nil
}

func (s *Store) IsModelPinned(ctx context.Context, modelName, instanceID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM model_pin WHERE model_name = ? AND instance_id = ?",
		modelName, instanceID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check model pinned: %w", err)
	}
	return n > 0, nil
}

// PinnedModels returns the pins for an instance in pin order.
func (s *Store) PinnedModels(ctx context.Context, instanceID string) ([]ModelPin, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, model_name, instance_id, pin_order FROM model_pin WHERE instance_id = ? ORDER BY pin_order ASC",
		instanceID)
	if err != nil {
		return nil, fmt.Errorf("list pinned models: %w", err)
	}
	defer rows.Close()

	out := make([]ModelPin, 0)
	for rows.Next() {
		var p ModelPin
		if err := rows.Scan(&p.ID, &p.ModelName, &p.InstanceID, &p.PinOrder); err != nil {
			return nil, fmt.Errorf("scan model pin row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate model pin rows: %w", err)
	}
	return out, nil
}

// SetPinOrder moves a pin to newOrder, shifting the pins between its
// old and new positions so the sequence stays contiguous.
func (s *Store) SetPinOrder(ctx context.Context, modelName, instanceID string, newOrder int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set pin order: %w", err)
	}
	defer tx.Rollback()

	var oldOrder int
	err = tx.QueryRowContext(ctx,
		"SELECT pin_order FROM model_pin WHERE model_name = ? AND instance_id = ?",
		modelName, instanceID).Scan(&oldOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read pin order: %w", err)
	}
	if newOrder == oldOrder {
		return nil
	}

	if newOrder < oldOrder {
		_, err = tx.ExecContext(ctx,
			"UPDATE model_pin SET pin_order = pin_order + 1 WHERE instance_id = ? AND pin_order >= ? AND pin_order < ?",
			instanceID, newOrder, oldOrder)
	} else {
		_, err = tx.ExecContext(ctx,
			"UPDATE model_pin SET pin_order = pin_order - 1 WHERE instance_id = ? AND pin_order > ? AND pin_order <= ?",
			instanceID, oldOrder, newOrder)
	}
	if err != nil {
		return fmt.Errorf("shift pin orders: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE model_pin SET pin_order = ? WHERE model_name = ? AND instance_id = ?",
		newOrder, modelName, instanceID); err != nil {
		return fmt.Errorf("set pin order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set pin order: %w", err)
	}
	return nil
}
