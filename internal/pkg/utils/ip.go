package utils

import (
	"fmt"
	"net"
)

// GetOutboundIP 返回本机对外通信使用的 IP，用于注册到 Nacos。
// UDP Dial 不会真正发包，只是让内核选出路由对应的源地址。
func GetOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", fmt.Errorf("failed to detect outbound ip: %w", err)
	}
	defer conn.Close()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local address type %T", conn.LocalAddr())
	}
	return localAddr.IP.String(), nil
}
