package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hr-access/backend/internal/model"
	"hr-access/backend/internal/repository"
)

// forEachOrganization 按组织并行执行 fn，同一组织内由 fn 自己保证顺序
// 某个组织失败不影响其他组织，所有失败合并返回
func forEachOrganization(ctx context.Context, repo *repository.Repository, limit int, logger *zap.Logger, job string, fn func(ctx context.Context, org *model.Organization) error) error {
	orgs, err := repo.Organization.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("列出组织失败: %w", err)
	}
	if limit <= 0 {
		limit = 1
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(limit)
	for i := range orgs {
		org := &orgs[i]
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := fn(ctx, org); err != nil {
				logger.Error("组织任务执行失败", zap.String("job", job), zap.Int64("org_id", org.ID), zap.Error(err))
				mu.Lock()
				errs = append(errs, fmt.Errorf("org %d: %w", org.ID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
