package minit

import (
	"fmt"

	"github.com/howeyc/gopass"
	"golang.org/x/xerrors"
)

// GetPassWord prompts for the wallet password on the terminal.
func GetPassWord() (string, error) {
	fmt.Print("Enter wallet password: ")
	pw, err := gopass.GetPasswdMasked()
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// GetNewPassWord prompts twice for a new wallet password.
func GetNewPassWord() (string, error) {
	fmt.Print("Enter new wallet password: ")
	pw, err := gopass.GetPasswdMasked()
	if err != nil {
		return "", err
	}
	fmt.Print("Repeat password: ")
	again, err := gopass.GetPasswdMasked()
	if err != nil {
		return "", err
	}
	if string(pw) != string(again) {
		return "", xerrors.New("passwords do not match")
	}
	return string(pw), nil
}
