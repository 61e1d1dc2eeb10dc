package internal

import (
	"fmt"
	"os"

	"github.com/DreamCats/hospitalvoice/internal/config"
)

// LoadConfig 从指定路径读取并解析 YAML 配置文件，路径为空时使用默认位置。
// 返回填充后的 *config.Config 或解析错误。
func LoadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

// ResolveConfigPath 返回实际使用的配置文件路径。
func ResolveConfigPath(configPath string) (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultConfigPath()
}

// PrintConfigExample 向 stderr 打印一份最小可用的 YAML 配置示例。
func PrintConfigExample() {
	configPath, _ := config.DefaultConfigPath()

	fmt.Fprintf(os.Stderr, `Create a configuration file at %s
(or run: hospitalvoice init):

embedding:
  # Provider: "openai" | "ollama" | "local"
  provider: openai
  model: text-embedding-3-small
  api_key: your-openai-api-key   # or set OPENAI_API_KEY

data:
  path: $HOME/.hospitalvoice/data/hospitals.db
  input: ./hospitals.csv

search:
  top_k: 3
  extraction_mode: freetext      # or "structured"

voice:
  api_key: your-openai-api-key

Usage:
  1. Create the config file
  2. Build the index:  hospitalvoice build
  3. Ask a question:   hospitalvoice query "Is Apollo Hospital in Chennai in my network?"
  4. Serve HTTP:       hospitalvoice serve
`, configPath)
}
