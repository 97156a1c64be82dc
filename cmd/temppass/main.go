package main

import (
	"fmt"
	"os"

	"github.com/alexedwards/argon2id"

	"github.com/engrodrigo-prog/djt-quest/internal/auth"
)

func main() {
	password, err := auth.GenerateTempPassword()
	if err != nil {
		fmt.Fprintf(os.Stderr, "temppass error: %v\n", err)
		os.Exit(1)
	}

	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(password)
	fmt.Println(hash)
}
