// Command token mints a development JWT for the credit API.
//
//	token -role ANALYST
//	token -role AFFILIATE -affiliate 6f1c...
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"coopcredit/pkg/config"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	role := flag.String("role", "ADMIN", "ADMIN, ANALYST or AFFILIATE")
	affiliateID := flag.String("affiliate", "", "affiliate UUID bound to an AFFILIATE token")
	ttl := flag.Duration("ttl", cfg.JWT.Expiration, "token lifetime")
	flag.Parse()

	claims := jwt.MapClaims{
		"sub":  uuid.New().String(),
		"role": strings.ToUpper(*role),
		"iss":  cfg.JWT.Issuer,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(*ttl).Unix(),
	}
	if *affiliateID != "" {
		if _, err := uuid.Parse(*affiliateID); err != nil {
			fmt.Fprintf(os.Stderr, "invalid affiliate id: %v\n", err)
			os.Exit(2)
		}
		claims["affiliate_id"] = *affiliateID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.JWT.Secret))
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(signed)
}
