// issuetoken 为管理端签发 Access Token，供运维脚本与外部 CRUD 服务调用管理接口
package main

import (
	"flag"
	"fmt"
	"os"

	"hr-access/backend/config"
	"hr-access/backend/pkg/jwt"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "配置文件路径（默认 ./config/config.yaml）")
		userID  = flag.String("user", "", "调用方标识")
		orgID   = flag.Int64("org", 0, "组织 id")
		role    = flag.String("role", "admin", "角色")
	)
	flag.Parse()

	if *userID == "" || *orgID <= 0 {
		fmt.Fprintln(os.Stderr, "用法: issuetoken -user <id> -org <organization_id> [-role admin]")
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	token, err := jwt.NewManager(&cfg.Auth).GenerateAccessToken(*userID, *role, *orgID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "签发 Token 失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
