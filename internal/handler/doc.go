// Package handler 按业务分子包的 HTTP Handler。
//
// 该文件让 `swag init --dir ./internal/handler` 能把本目录识别为 Go 包。
package handler
