// Command issue-token mints a JWT for a moderator or a game server.
//
//	issue-token -realm admin -sub mod-17 -name "Jo" -role admin
//	issue-token -realm server -sub lobby-eu-1
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/attaboy/muteregistry/internal/auth"
	"github.com/attaboy/muteregistry/internal/infra"
)

func main() {
	realmFlag := flag.String("realm", string(auth.RealmAdmin), "token realm: admin or server")
	subject := flag.String("sub", "", "subject (moderator or server id)")
	name := flag.String("name", "", "display name")
	role := flag.String("role", auth.RoleViewer, "admin role: viewer, admin, superadmin")
	flag.Parse()

	if err := run(*realmFlag, *subject, *name, *role); err != nil {
		fmt.Fprintln(os.Stderr, "issue-token:", err)
		os.Exit(1)
	}
}

func run(realmFlag, subject, name, role string) error {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	realm, err := auth.ParseRealm(realmFlag)
	if err != nil {
		return err
	}

	mgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAdminExpiry, cfg.JWTServerExpiry)
	token, err := mgr.GenerateToken(realm, subject, name, role)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	fmt.Println(token)
	return nil
}
