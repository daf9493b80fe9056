package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/allaspectsdev/frkbsync/internal/vault"
	"golang.org/x/term"
)

func cmdKeys(args []string) {
	if len(args) == 0 {
		printKeysUsage()
		os.Exit(1)
	}

	v := vault.New()

	switch args[0] {
	case "set-admin-token":
		fmt.Print("Enter admin token: ")
		token, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading token: %v\n", err)
			os.Exit(1)
		}
		if err := v.SetAdminToken(string(token)); err != nil {
			fmt.Fprintf(os.Stderr, "error storing admin token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Admin token stored successfully")

	case "delete-admin-token":
		if err := v.DeleteAdminToken(); err != nil {
			fmt.Fprintf(os.Stderr, "error deleting admin token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Admin token deleted")

	case "allow":
		if len(args) < 2 {
			fmt.Println("Usage: frkbsyncd keys allow <user-key>")
			os.Exit(1)
		}
		if err := v.AllowUserKey(args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "error allowlisting user key: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("User key %s allowlisted\n", args[1])

	case "revoke":
		if len(args) < 2 {
			fmt.Println("Usage: frkbsyncd keys revoke <user-key>")
			os.Exit(1)
		}
		if err := v.RevokeUserKey(args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "error revoking user key: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("User key %s revoked\n", args[1])

	case "check":
		if len(args) < 2 {
			fmt.Println("Usage: frkbsyncd keys check <user-key>")
			os.Exit(1)
		}
		if v.IsUserKeyAllowed(args[1]) {
			fmt.Printf("User key %s is allowed\n", args[1])
		} else {
			fmt.Printf("User key %s is NOT allowed\n", args[1])
			os.Exit(1)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown keys command: %s\n", args[0])
		printKeysUsage()
		os.Exit(1)
	}
}

func printKeysUsage() {
	fmt.Println(`Usage: frkbsyncd keys <subcommand> [args]

Subcommands:
  set-admin-token      Store the admin bearer token (prompts, hidden input)
  delete-admin-token   Remove the stored admin bearer token
  allow <user-key>     Add a user key to the allowlist
  revoke <user-key>    Remove a user key from the allowlist
  check <user-key>     Report whether a user key is allowlisted`)
}
