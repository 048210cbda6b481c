// Command hash-generator prints bcrypt hashes for the given passwords. It is
// used to prepare fixture rows and to reset a password directly in the database.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/phrazzld/tasksync/internal/service/auth"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	cost := flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost factor")
	flag.Parse()

	hasher := auth.NewBcryptVerifier(*cost)

	passwords := flag.Args()
	if len(passwords) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			passwords = append(passwords, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading passwords: %v\n", err)
			os.Exit(1)
		}
	}

	failed := false
	for _, password := range passwords {
		hash, err := hasher.Hash(password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating hash: %v\n", err)
			failed = true
			continue
		}
		fmt.Println(hash)
	}
	if failed {
		os.Exit(1)
	}
}
