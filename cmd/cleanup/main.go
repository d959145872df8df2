package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/qs3c/insight_go_server/config"
	"github.com/qs3c/insight_go_server/internal/database"
	"github.com/qs3c/insight_go_server/internal/repository"
)

var (
	dryRun        = flag.Bool("dry-run", true, "Dry run mode, don't actually modify anything")
	stuckIdle     = flag.Int("stuck-idle", 10, "Minutes without heartbeat before a job counts as stuck")
	historyExpire = flag.Int("history-expire", 7, "Days to keep durable commit history rows")
	archiveExpire = flag.Int("archive-expire", 7, "Days to keep local index archive files")
	sweepJobs     = flag.Bool("sweep-jobs", true, "Mark stuck jobs as failed")
	cleanHistory  = flag.Bool("clean-history", true, "Delete stale commit history rows")
	cleanArchives = flag.Bool("clean-archives", true, "Delete expired local index archives")
)

func main() {
	flag.Parse()

	log.Println("🧹 Starting cleanup task...")
	log.Printf("Mode: dry-run=%v", *dryRun)

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 连接数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	jobRepo := repository.NewJobRepository(db)
	historyRepo := repository.NewHistoryRepository(db)

	sweptJobs := int64(0)
	deletedRows := int64(0)
	deletedFiles := 0
	freedSize := int64(0)

	// 1. 回收卡死任务
	if *sweepJobs {
		log.Printf("\n⏱  Sweeping jobs idle for more than %d minutes...", *stuckIdle)
		idleBefore := time.Now().Add(-time.Duration(*stuckIdle) * time.Minute)
		if *dryRun {
			log.Println("  (dry-run, no jobs modified)")
		} else {
			n, err := jobRepo.SweepStuck(idleBefore,
				fmt.Sprintf("分析超时：任务闲置超过 %d 分钟", *stuckIdle))
			if err != nil {
				log.Printf("  ❌ Failed to sweep stuck jobs: %v", err)
			} else {
				sweptJobs = n
			}
		}
		log.Printf("Swept %d stuck jobs", sweptJobs)
	}

	// 2. 清理过期的持久层提交历史
	if *cleanHistory {
		log.Printf("\n📜 Cleaning commit history rows older than %d days...", *historyExpire)
		before := time.Now().Add(-time.Duration(*historyExpire) * 24 * time.Hour)
		if *dryRun {
			log.Println("  (dry-run, no rows deleted)")
		} else {
			n, err := historyRepo.DeleteStaleBefore(before)
			if err != nil {
				log.Printf("  ❌ Failed to delete history rows: %v", err)
			} else {
				deletedRows = n
			}
		}
		log.Printf("Deleted %d history rows", deletedRows)
	}

	// 3. 清理过期的本地索引归档
	if *cleanArchives && cfg.Analysis.ArchiveDir != "" {
		log.Printf("\n📦 Cleaning local index archives older than %d days...", *archiveExpire)
		size, count := cleanExpiredArchives(cfg.Analysis.ArchiveDir, *archiveExpire, *dryRun)
		freedSize += size
		deletedFiles += count
	}

	// 输出统计
	log.Println("\n" + strings.Repeat("=", 60))
	log.Println("📊 Cleanup Summary")
	log.Println(strings.Repeat("=", 60))
	log.Printf("Stuck jobs swept: %d", sweptJobs)
	log.Printf("History rows deleted: %d", deletedRows)
	log.Printf("Archive files deleted: %d", deletedFiles)
	log.Printf("Freed space: %s", formatSize(freedSize))
	if *dryRun {
		log.Println("\n⚠️  DRY RUN MODE - Nothing was actually modified")
		log.Println("   Run with -dry-run=false to apply changes")
	} else {
		log.Println("\n✅ Cleanup completed!")
	}
	log.Println(strings.Repeat("=", 60))
}

// cleanExpiredArchives 清理过期的本地索引归档文件
func cleanExpiredArchives(archiveDir string, keepDays int, dryRun bool) (int64, int) {
	expireTime := time.Now().Add(-time.Duration(keepDays) * 24 * time.Hour)
	var totalSize int64
	var count int

	entries, err := os.ReadDir(archiveDir)
	if err != nil {
		log.Printf("Failed to read archive dir: %v", err)
		return 0, 0
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(expireTime) {
			totalSize += info.Size()

			log.Printf("  - %s (%.2f KB, %s old)",
				entry.Name(),
				float64(info.Size())/1024,
				time.Since(info.ModTime()).Round(time.Hour))

			if !dryRun {
				if err := os.Remove(filepath.Join(archiveDir, entry.Name())); err != nil {
					log.Printf("    ❌ Failed to delete: %v", err)
				} else {
					count++
				}
			} else {
				count++
			}
		}
	}

	log.Printf("Found %d expired archive files (total: %s)", count, formatSize(totalSize))
	return totalSize, count
}

// formatSize 格式化文件大小
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
