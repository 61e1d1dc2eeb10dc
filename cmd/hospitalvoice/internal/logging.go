package internal

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

// SetupLogging 为子命令初始化日志：同时输出到 stderr 和 ~/.hospitalvoice/logs 下的文件。
// 返回设置失败时的 error。
func SetupLogging(subcommand string) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	logDir := filepath.Join(homeDir, ".hospitalvoice", "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("hospitalvoice-%s-%s-%d.log", subcommand, timestamp, os.Getpid())
	logPath := filepath.Join(logDir, filename)

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	log.SetOutput(io.MultiWriter(os.Stderr, logFile))
	log.Printf("Log file: %s", logPath)
	return nil
}

// QuietLogging 关闭日志输出，供需要干净 stdout/stderr 的子命令使用。
func QuietLogging() {
	log.SetOutput(io.Discard)
}
