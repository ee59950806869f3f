package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const userColumns = "id, name, COALESCE(email,''), COALESCE(external_id,''), created_at"

// CreateUser inserts a user and returns it.
func (d *DB) CreateUser(ctx context.Context, name, email string) (*User, error) {
	return d.insertUser(ctx, name, email, "")
}

func (d *DB) insertUser(ctx context.Context, name, email, externalID string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("creating user: name is required")
	}
	u := &User{
		ID:         uuid.NewString(),
		Name:       name,
		Email:      email,
		ExternalID: externalID,
		CreatedAt:  fromUnix(d.now().Unix()),
	}
	_, err := d.conn.ExecContext(ctx,
		"INSERT INTO users (id, name, email, external_id, created_at) VALUES (?, ?, ?, ?, ?)",
		u.ID, u.Name, nullStr(email), nullStr(externalID), u.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// GetUser returns the user with the given id, or ErrNotFound.
func (d *DB) GetUser(ctx context.Context, id string) (*User, error) {
	row := d.conn.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u, err
}

// EnsureExternalUser returns the user bound to externalID (for example
// "discord:1234"), creating it on first sight.
func (d *DB) EnsureExternalUser(ctx context.Context, externalID, name string) (*User, error) {
	row := d.conn.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE external_id = ?", externalID)
	u, err := scanUser(row)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if name == "" {
		name = externalID
	}
	return d.insertUser(ctx, name, "", externalID)
}

func scanUser(s scanner) (*User, error) {
	var u User
	var created int64
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &u.ExternalID, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	u.CreatedAt = fromUnix(created)
	return &u, nil
}
