package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 6

// errPasswordTooLong はbcryptの入力上限（72バイト）を超えたパスワードを表す。
var errPasswordTooLong = errors.New("password exceeds 72 bytes")

// hashPassword はソルト付きのbcryptハッシュを生成する。
func hashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", errPasswordTooLong
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// dummyPassword は未登録メールでのログイン時に比較するハッシュの元になる値。
const dummyPassword = "poethaven-dummy-password"

// comparePassword はハッシュと平文が一致する場合にtrueを返す。
func comparePassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
