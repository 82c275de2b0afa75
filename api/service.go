package api

import (
	"moneybook/internal/serviceiface"
)

type GatewayService struct {
	config map[string]interface{}
}

func NewGatewayService(cfg map[string]interface{}) serviceiface.Service {
	return &GatewayService{config: cfg}
}

func (s *GatewayService) Name() string {
	return "gateway"
}

func (s *GatewayService) Start() error {
	port := 8081
	upstreams := []string{"http://localhost:7143"}
	if s.config != nil {
		if v, ok := s.config["port"].(int); ok && v > 0 {
			port = v
		}
		if raw, ok := s.config["upstreams"].([]interface{}); ok && len(raw) > 0 {
			upstreams = upstreams[:0]
			for _, u := range raw {
				if str, ok := u.(string); ok && str != "" {
					upstreams = append(upstreams, str)
				}
			}
			if len(upstreams) == 0 {
				upstreams = []string{"http://localhost:7143"}
			}
		}
	}
	go StartGateway(port, upstreams)
	return nil
}

func (s *GatewayService) Stop() error {
	return nil
}
