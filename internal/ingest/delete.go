package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/narau/narau/internal/models"
)

// Delete removes a file's chunks from the content store and vector index and
// drops it from the registry. When the last file of a course is removed, the
// course partitions themselves are garbage collected. Once deletion starts it
// runs to completion even if the caller's context is canceled; a partial
// delete would leave orphaned chunks behind.
func (p *Pipeline) Delete(ctx context.Context, course, fileName string) error {
	hasCourse, err := p.registry.HasCourse(ctx, course)
	if err != nil {
		return fmt.Errorf("check course: %w", err)
	}
	if !hasCourse {
		return fmt.Errorf("%w: course %q", models.ErrNotFound, course)
	}
	hasFile, err := p.registry.HasFile(ctx, course, fileName)
	if err != nil {
		return fmt.Errorf("check registry: %w", err)
	}
	if !hasFile {
		return fmt.Errorf("%w: file %q in course %q", models.ErrNotFound, fileName, course)
	}

	ctx = context.WithoutCancel(ctx)
	if err := p.content.DeleteByFile(ctx, course, fileName); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := p.vectors.RemoveByFile(ctx, course, fileName); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := p.registry.RemoveFile(ctx, course, fileName); err != nil {
		return fmt.Errorf("deregister file: %w", err)
	}

	remaining, err := p.registry.Files(ctx, course)
	if err != nil {
		return fmt.Errorf("list remaining files: %w", err)
	}
	if len(remaining) == 0 {
		if err := p.content.DropCourse(ctx, course); err != nil {
			return fmt.Errorf("drop course content: %w", err)
		}
		if err := p.vectors.DropCourse(ctx, course); err != nil {
			return fmt.Errorf("drop course vectors: %w", err)
		}
		if p.logger != nil {
			p.logger.Info("course garbage collected", zap.String("course", course))
		}
	}

	if p.logger != nil {
		p.logger.Info("file deleted",
			zap.String("course", course),
			zap.String("file", fileName))
	}
	return nil
}
