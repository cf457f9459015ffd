package consul

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	consulapi "github.com/hashicorp/consul/api"

	conf "github.com/hoteldex/hotel-admin/config"
	"github.com/hoteldex/hotel-admin/internal/errors"
	"github.com/hoteldex/hotel-admin/registry"
)

// ConsulRegistry registers the admin backend with consul and keeps its
// TTL check passing for the lifetime of the process.
type ConsulRegistry struct {
	registrationConfig *consulapi.AgentServiceRegistration
	client             *consulapi.Client
	stop               chan any
	checkId            string
}

func NewConsulRegistry(config *conf.ConsulConfig) (*ConsulRegistry, error) {
	if config.Id == "" {
		return nil, errors.Internal(
			"service id is empty! (set it by '-id' flag)",
			errors.WithID("consul.registry.check_args.service_id"),
		)
	}
	ip, port, err := net.SplitHostPort(config.PublicAddress)
	if err != nil {
		return nil, errors.Internal(
			"unable to parse public address",
			errors.WithID("consul.registry.parse_address.error"),
		)
	}
	parsedPort, err := strconv.Atoi(port)
	if err != nil {
		return nil, errors.Internal(
			"unable to parse public port",
			errors.WithID("consul.registry.parse_port.error"),
		)
	}

	consulConfig := consulapi.DefaultConfig()
	consulConfig.Address = config.Address
	client, err := consulapi.NewClient(consulConfig)
	if err != nil {
		return nil, errors.Internal(
			err.Error(),
			errors.WithID("consul.registry.client_creation.error"),
		)
	}

	return &ConsulRegistry{
		client: client,
		registrationConfig: &consulapi.AgentServiceRegistration{
			ID:      config.Id,
			Name:    registry.ServiceName,
			Port:    parsedPort,
			Address: ip,
			Check: &consulapi.AgentServiceCheck{
				DeregisterCriticalServiceAfter: registry.DeregisterCriticalServiceAfter.String(),
				TTL:                            registry.CheckInterval.String(),
			},
		},
		stop: make(chan any),
	}, nil
}

// Register registers the service and starts the TTL check-in loop.
func (c *ConsulRegistry) Register() error {
	if err := c.client.Agent().ServiceRegister(c.registrationConfig); err != nil {
		return errors.Internal(
			err.Error(),
			errors.WithID("consul.registry.register.error"),
		)
	}

	checks, err := c.client.Agent().Checks()
	if err != nil {
		return errors.Internal(
			err.Error(),
			errors.WithID("consul.registry.register.get_checks.error"),
		)
	}

	var serviceCheck *consulapi.AgentCheck
	for _, check := range checks {
		if check.ServiceID == c.registrationConfig.ID {
			serviceCheck = check
		}
	}
	if serviceCheck == nil {
		return errors.Internal(
			"service check not found",
			errors.WithID("consul.registry.register.check_missing"),
		)
	}
	c.checkId = serviceCheck.CheckID

	go c.runServiceCheck()
	return nil
}

func (c *ConsulRegistry) Deregister() error {
	if err := c.client.Agent().ServiceDeregister(c.registrationConfig.ID); err != nil {
		return errors.Internal(
			err.Error(),
			errors.WithID("consul.registry.deregister.error"),
		)
	}
	c.stop <- true
	slog.Info(fmtConsulLog("service was deregistered"))
	return nil
}

func (c *ConsulRegistry) doUpdateTTL() error {
	if err := c.client.Agent().UpdateTTL(c.checkId, "success", "pass"); err != nil {
		slog.Error("consul: failed to complete regular check-in", "error", fmtConsulLog(err.Error()))
		return err
	}
	return nil
}

func (c *ConsulRegistry) runServiceCheck() {
	if err := c.doUpdateTTL(); err == nil {
		slog.Info(fmtConsulLog("service was registered"))
	}
	defer slog.Info(fmtConsulLog("stopped service checker"))
	slog.Info(fmtConsulLog("started service checker"))
	ticker := time.NewTicker(registry.CheckInterval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			_ = c.doUpdateTTL()
		}
	}
}

func fmtConsulLog(s string) string {
	return fmt.Sprintf("consul: %s", s)
}
