package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/tentpost/internal/config"
	"github.com/tentpost/internal/db"
	"github.com/tentpost/internal/service"
	"gorm.io/gorm"
)

const (
	demoEntity      = "https://admin.tentpost.test"
	statusType      = "https://tent.io/types/status/v0#"
	appType         = "https://tent.io/types/app/v0#"
	appAuthType     = "https://tent.io/types/app-auth/v0#"
	demoStatusCount = 5
)

// 测试数据生成器
func main() {
	cfg := config.Load()
	gdb, err := db.Init(cfg.DatabaseDriver, cfg.DSN())
	if err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	fmt.Println("开始生成测试数据...")
	summary, err := generate(context.Background(), gdb, cfg.BlobCompression)
	if err != nil {
		log.Fatal("生成测试数据失败:", err)
	}

	fmt.Println("测试数据生成完成！")
	fmt.Println("用户: admin (密码: admin123)")
	fmt.Printf("文章: %d 篇，版本: %d 个\n", summary.posts, summary.versions)
}

type seedSummary struct {
	posts    int
	versions int
}

func generate(ctx context.Context, gdb *gorm.DB, compression string) (seedSummary, error) {
	pipeline := service.NewPipeline(gdb, service.PipelineConfig{BlobCompression: compression})
	accounts := service.NewAccountService(gdb, pipeline.Mentions())

	account, err := accounts.EnsureUser("admin", "admin123", demoEntity)
	if err != nil {
		return seedSummary{}, err
	}
	user := service.CurrentUserOf(account)

	var summary seedSummary
	for i := 1; i <= demoStatusCount; i++ {
		post, err := pipeline.CreateFromEnvelope(ctx, service.Envelope{
			Type:    statusType,
			Content: mustJSON(map[string]any{"text": fmt.Sprintf("测试动态 #%d", i)}),
		}, user)
		if err != nil {
			return summary, fmt.Errorf("创建动态 %d: %w", i, err)
		}
		summary.posts++
		summary.versions++

		// 偶数篇追加一次编辑，形成两级版本链。
		if i%2 == 0 {
			edited := mustJSON(map[string]any{"text": fmt.Sprintf("测试动态 #%d（已编辑）", i)})
			if _, err := pipeline.CreateNewVersion(ctx, post, edited, user); err != nil {
				return summary, fmt.Errorf("编辑动态 %d: %w", i, err)
			}
			summary.versions++
		}
	}

	app, err := pipeline.CreateFromEnvelope(ctx, service.Envelope{
		Type: appType,
		Content: mustJSON(map[string]any{
			"name":         "Demo Reader",
			"url":          "https://reader.tentpost.test",
			"redirect_uri": "https://reader.tentpost.test/callback",
			"types":        map[string]any{"read": []string{"https://tent.io/types/status/v0"}},
		}),
	}, user)
	if err != nil {
		return summary, fmt.Errorf("创建应用: %w", err)
	}
	summary.posts++
	summary.versions++

	if _, err := pipeline.CreateFromEnvelope(ctx, service.Envelope{
		Type:     appAuthType,
		Content:  mustJSON(map[string]any{"active": true}),
		Mentions: []db.MentionRef{{Entity: demoEntity, Post: app.PublicID}},
	}, user); err != nil {
		return summary, fmt.Errorf("授权应用: %w", err)
	}
	// app-auth 自身与随之签发的凭证。
	summary.posts += 2
	summary.versions += 2

	return summary, nil
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
