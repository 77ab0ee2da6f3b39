// Command hashpw prints the bcrypt hash of a password, for DEMO_USER_PASSWORD_HASH
// or the password_hash field of a USERS_FILE entry.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"login-demo/core"
)

func main() {
	cost := flag.Int("cost", core.Load().BcryptCost, "bcrypt cost")
	flag.Parse()

	password, err := readPassword()
	if err != nil {
		log.Fatalf("read password: %v", err)
	}
	if password == "" {
		log.Fatalf("empty password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), *cost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	fmt.Println(string(hash))
}

// readPassword prompts without echo on a terminal, otherwise reads the first line of stdin.
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Password: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		return string(b), err
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
