package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/m3usync/internal/models"
	"golang.org/x/oauth2"
)

// LoadToken reads a token from path. A missing file yields a nil token and no error.
func LoadToken(path string) (*models.Token, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var tok models.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", path, err)
	}
	return &tok, nil
}

// SaveToken writes tok to path, replacing the file.
func SaveToken(path string, tok *models.Token) error {
	if path == "" || tok == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// fromOAuth converts a grant response into a [models.Token] stamped with granted and expiry times.
func fromOAuth(tok *oauth2.Token, now time.Time) *models.Token {
	out := &models.Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    tok.ExpiresIn,
		GrantedAt:    unix(now),
	}

	if scope, ok := tok.Extra("scope").(string); ok {
		out.Scope = scope
	}

	switch {
	case tok.ExpiresIn > 0:
		out.ExpiresAt = out.GrantedAt + float64(tok.ExpiresIn)
	case !tok.Expiry.IsZero():
		out.ExpiresAt = unix(tok.Expiry)
		out.ExpiresIn = int64(tok.Expiry.Sub(now).Seconds())
	}
	return out
}

// fromRetrieveError records a rejected grant as a token carrying the error fields.
func fromRetrieveError(re *oauth2.RetrieveError, now time.Time) *models.Token {
	code := re.ErrorCode
	if code == "" && re.Response != nil {
		code = fmt.Sprintf("http_%d", re.Response.StatusCode)
	}
	if code == "" {
		code = "token_request_failed"
	}
	return &models.Token{Error: code, ErrorDescription: re.ErrorDescription, GrantedAt: unix(now)}
}

func unix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
