/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/sarpras-lapor/apiserver/internal/db"
	"github.com/sarpras-lapor/apiserver/internal/services"
	"github.com/sarpras-lapor/apiserver/internal/store"
	"github.com/sarpras-lapor/apiserver/types"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var newUser services.RegisterInput

// useraddCmd represents the useradd command
var useraddCmd = &cobra.Command{
	Use:   "useradd",
	Short: "Create an account directly in the database",
	Long: `Create an account without going through the API, typically the
first admin. Usage:

	sarpras useradd --username admin --password secret1 --nama Admin --email admin@sekolah.sch.id --role admin
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer conn.Close()

		userService := services.NewUserService(store.NewUserRepository(conn), nil, nil, logger)
		user, err := userService.Register(cmd.Context(), newUser)
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}

		logger.WithFields(logrus.Fields{
			"user_id":  user.ID,
			"username": user.Username,
			"role":     user.Role,
		}).Info("user created")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(useraddCmd)

	useraddCmd.Flags().StringVar(&newUser.Username, "username", "", "Login name")
	useraddCmd.Flags().StringVar(&newUser.Password, "password", "", "Password, at least 6 characters")
	useraddCmd.Flags().StringVar(&newUser.Name, "nama", "", "Display name")
	useraddCmd.Flags().StringVar(&newUser.Email, "email", "", "E-mail address")
	useraddCmd.Flags().StringVar((*string)(&newUser.Role), "role", string(types.RoleUser), "Role, admin or user")
	_ = useraddCmd.MarkFlagRequired("username")
	_ = useraddCmd.MarkFlagRequired("password")
}
