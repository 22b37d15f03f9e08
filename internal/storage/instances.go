package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

func (s *Store) UpsertInstance(ctx context.Context, inst Instance) error {
	q := s.sql.Insert("instance").
		Columns("id", "pinned", "type", "properties").
		Values(inst.ID, inst.Pinned, inst.Type, inst.Properties).
		Suffix("ON CONFLICT(id) DO UPDATE SET properties=excluded.properties")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build instance upsert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("upsert instance: %w", err)
	}
	return nil
}

func (s *Store) GetInstance(ctx context.Context, id string) (Instance, error) {
	q := s.sql.Select("id", "pinned", "type", "properties").
		From("instance").
		Where(sq.Eq{"id": id})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Instance{}, fmt.Errorf("build get instance query: %w", err)
	}

	var inst Instance
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&inst.ID, &inst.Pinned, &inst.Type, &inst.Properties); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Instance{}, ErrNotFound
		}
		return Instance{}, fmt.Errorf("get instance: %w", err)
	}
	return inst, nil
}

// ListInstances returns all configured instances, pinned ones first.
func (s *Store) ListInstances(ctx context.Context) ([]Instance, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, pinned, type, properties FROM instance ORDER BY pinned DESC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	out := make([]Instance, 0)
	for rows.Next() {
		var inst Instance
		if err := rows.Scan(&inst.ID, &inst.Pinned, &inst.Type, &inst.Properties); err != nil {
			return nil, fmt.Errorf("scan instance row: %w", err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instance rows: %w", err)
	}
	return out, nil
}

func (s *Store) DeleteInstance(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM instance WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	return nil
}

func (s *Store) UpsertModelPreferences(ctx context.Context, p ModelPreferences) error {
	q := s.sql.Insert("model_preferences").
		Columns("id", "picture", "voice").
		Values(p.ID, p.Picture, p.Voice).
		Suffix("ON CONFLICT(id) DO UPDATE SET picture=excluded.picture, voice=excluded.voice")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build model preferences upsert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("upsert model preferences: %w", err)
	}
	return nil
}

func (s *Store) GetModelPreferences(ctx context.Context, modelID string) (ModelPreferences, error) {
	var p ModelPreferences
	var picture, voice sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, picture, voice FROM model_preferences WHERE id = ?", modelID).
		Scan(&p.ID, &picture, &voice)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ModelPreferences{}, ErrNotFound
		}
		return ModelPreferences{}, fmt.Errorf("get model preferences: %w", err)
	}
	if picture.Valid {
		p.Picture = &picture.String
	}
	if voice.Valid {
		p.Voice = &voice.String
	}
	return p, nil
}

func (s *Store) DeleteModelPreferences(ctx context.Context, modelID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM model_preferences WHERE id = ?", modelID); err != nil {
		return fmt.Errorf("delete model preferences: %w", err)
	}
	return nil
}

// SetOnlineModelList stores the JSON model catalogue fetched from an
// online instance, replacing any previous snapshot for that key.
func (s *Store) SetOnlineModelList(ctx context.Context, key, payload string) error {
	q := s.sql.Insert("online_instance_model_list").
		Columns("id", "list").
		Values(key, payload).
		Suffix("ON CONFLICT(id) DO UPDATE SET list=excluded.list")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build model list upsert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("set online model list: %w", err)
	}
	return nil
}

func (s *Store) GetOnlineModelList(ctx context.Context, key string) (string, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT list FROM online_instance_model_list WHERE id = ?", key).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get online model list: %w", err)
	}
	return payload, nil
}

// AppendOnlineModel adds a model to the stored list for key, creating
// the list when absent. Appending a model already present is a no-op.
func (s *Store) AppendOnlineModel(ctx context.Context, key, model string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append online model: %w", err)
	}
	defer tx.Rollback()

	models, err := readOnlineModelList(ctx, tx, key)
	if err != nil && err != ErrNotFound {
		return err
	}
	for _, m := range models {
		if m == model {
			return nil
		}
	}
	models = append(models, model)
	if err := writeOnlineModelList(ctx, tx, key, models); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append online model: %w", err)
	}
	return nil
}

// RemoveOnlineModel drops a model from the stored list for key.
// ErrNotFound when the list or the model does not exist.
func (s *Store) RemoveOnlineModel(ctx context.Context, key, model string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin remove online model: %w", err)
	}
	defer tx.Rollback()

	models, err := readOnlineModelList(ctx, tx, key)
	if err != nil {
		return err
	}
	kept := models[:0]
	for _, m := range models {
		if m != model {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(models) {
		return ErrNotFound
	}
	if err := writeOnlineModelList(ctx, tx, key, kept); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit remove online model: %w", err)
	}
	return nil
}

func readOnlineModelList(ctx context.Context, tx *sql.Tx, key string) ([]string, error) {
	var payload string
	err := tx.QueryRowContext(ctx,
		"SELECT list FROM online_instance_model_list WHERE id = ?", key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read online model list: %w", err)
	}
	var models []string
	if err := json.Unmarshal([]byte(payload), &models); err != nil {
		return nil, fmt.Errorf("decode online model list: %w", err)
	}
	return models, nil
}

func writeOnlineModelList(ctx context.Context, tx *sql.Tx, key string, models []string) error {
	payload, err := json.Marshal(models)
	if err != nil {
		return fmt.Errorf("encode online model list: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO online_instance_model_list (id, list) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET list=excluded.list",
		key, string(payload)); err != nil {
		return fmt.Errorf("write online model list: %w", err)
	}
	return nil
}
