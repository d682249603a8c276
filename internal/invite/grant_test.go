package invite

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	apperrors "github.com/sbliven/crew9bot/internal/platform/errors"
)

func codeIs(err error, code apperrors.Code) bool {
	return errors.Is(err, apperrors.New(code, ""))
}

func testKeyPair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	publicKey, privateKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return publicKey, privateKey
}

func testPair(t *testing.T, now func() time.Time) (*Signer, *Verifier) {
	t.Helper()
	publicKey, privateKey := testKeyPair(t)
	signer := &Signer{
		Issuer:   "crew9bot",
		Audience: "crew9bot-feed",
		Key:      privateKey,
		TTL:      time.Hour,
		Now:      now,
	}
	verifier := &Verifier{
		Issuer:   "crew9bot",
		Audience: "crew9bot-feed",
		Key:      publicKey,
		Now:      now,
	}
	return signer, verifier
}

func TestSignAndVerify(t *testing.T) {
	signer, verifier := testPair(t, nil)

	grant, err := signer.Sign("AAAAAAAA")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	claims, err := verifier.Verify(grant, "AAAAAAAA")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.GameID != "AAAAAAAA" {
		t.Fatalf("claims.GameID = %s, want AAAAAAAA", claims.GameID)
	}
	if claims.JWTID == "" {
		t.Fatal("claims.JWTID is empty")
	}
}

func TestVerifyRejectsGameMismatch(t *testing.T) {
	signer, verifier := testPair(t, nil)

	grant, err := signer.Sign("AAAAAAAA")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if _, err := verifier.Verify(grant, "BBBBBBBB"); !codeIs(err, apperrors.CodeGrantMismatch) {
		t.Fatalf("Verify() error = %v, want code %s", err, apperrors.CodeGrantMismatch)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	signer, verifier := testPair(t, func() time.Time { return issued })

	grant, err := signer.Sign("AAAAAAAA")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	verifier.Now = func() time.Time { return issued.Add(2 * time.Hour) }
	if _, err := verifier.Verify(grant, "AAAAAAAA"); !codeIs(err, apperrors.CodeGrantExpired) {
		t.Fatalf("Verify() error = %v, want code %s", err, apperrors.CodeGrantExpired)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	signer, _ := testPair(t, nil)
	_, verifier := testPair(t, nil)

	grant, err := signer.Sign("AAAAAAAA")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if _, err := verifier.Verify(grant, "AAAAAAAA"); !codeIs(err, apperrors.CodeGrantInvalid) {
		t.Fatalf("Verify() error = %v, want code %s", err, apperrors.CodeGrantInvalid)
	}
}

func TestVerifyRejectsIssuerMismatch(t *testing.T) {
	signer, verifier := testPair(t, nil)
	signer.Issuer = "someone-else"

	grant, err := signer.Sign("AAAAAAAA")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if _, err := verifier.Verify(grant, "AAAAAAAA"); !codeIs(err, apperrors.CodeGrantMismatch) {
		t.Fatalf("Verify() error = %v, want code %s", err, apperrors.CodeGrantMismatch)
	}
}

func TestVerifyRejectsEmptyGrant(t *testing.T) {
	_, verifier := testPair(t, nil)
	if _, err := verifier.Verify("  ", "AAAAAAAA"); !codeIs(err, apperrors.CodeGrantInvalid) {
		t.Fatalf("Verify() error = %v, want code %s", err, apperrors.CodeGrantInvalid)
	}
}

func TestLoadSignerFromEnv(t *testing.T) {
	_, privateKey := testKeyPair(t)
	t.Setenv("CREW9BOT_SPECTATE_PRIVATE_KEY", base64.RawStdEncoding.EncodeToString(privateKey))
	t.Setenv("CREW9BOT_SPECTATE_TTL", "30m")

	signer, err := LoadSignerFromEnv(nil)
	if err != nil {
		t.Fatalf("LoadSignerFromEnv() error = %v", err)
	}
	if signer == nil {
		t.Fatal("LoadSignerFromEnv() returned nil signer")
	}
	if signer.Issuer != "crew9bot" || signer.Audience != "crew9bot-feed" {
		t.Fatalf("signer defaults = %q/%q", signer.Issuer, signer.Audience)
	}
	if signer.TTL != 30*time.Minute {
		t.Fatalf("signer.TTL = %v, want 30m", signer.TTL)
	}
}

func TestLoadSignerFromEnvUnconfigured(t *testing.T) {
	t.Setenv("CREW9BOT_SPECTATE_PRIVATE_KEY", "")
	signer, err := LoadSignerFromEnv(nil)
	if err != nil {
		t.Fatalf("LoadSignerFromEnv() error = %v", err)
	}
	if signer != nil {
		t.Fatal("LoadSignerFromEnv() expected nil signer when key is unset")
	}
}

func TestLoadVerifierFromEnvRejectsShortKey(t *testing.T) {
	t.Setenv("CREW9BOT_SPECTATE_PUBLIC_KEY", base64.RawStdEncoding.EncodeToString([]byte("short")))
	if _, err := LoadVerifierFromEnv(nil); err == nil {
		t.Fatal("LoadVerifierFromEnv() expected error for short key")
	}
}
