package register

import (
	"context"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const leaseTTL = 30

type EtcdRegister struct {
	mu      sync.Mutex
	client  *clientv3.Client
	leaseId clientv3.LeaseID
}

func NewEtcdRegister(hosts string) (*EtcdRegister, error) {
	endpoints := make([]string, 0)
	for _, h := range strings.Split(hosts, ";") {
		if h = strings.TrimSpace(h); h != "" {
			endpoints = append(endpoints, h)
		}
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return &EtcdRegister{client: cli}, nil
}

func (cli *EtcdRegister) leaseLocked(ctx context.Context) error {
	if cli.leaseId != 0 {
		return nil
	}
	lease, err := cli.client.Grant(ctx, leaseTTL)
	if err != nil {
		return err
	}
	cli.leaseId = lease.ID
	return nil
}

func (cli *EtcdRegister) Register(target Target) error {
	cli.mu.Lock()
	defer cli.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cli.leaseLocked(ctx); err != nil {
		return err
	}
	_, err := cli.client.Put(ctx, target.String(), target.Host(), clientv3.WithLease(cli.leaseId))
	return err
}

func (cli *EtcdRegister) UnRegister(target Target) error {
	cli.mu.Lock()
	defer cli.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := cli.client.Delete(ctx, target.String())
	return err
}

// KeepAlive refreshes the lease; an expired lease is replaced and the
// target written again.
func (cli *EtcdRegister) KeepAlive(target Target) error {
	cli.mu.Lock()
	defer cli.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if cli.leaseId != 0 {
		if _, err := cli.client.KeepAliveOnce(ctx, cli.leaseId); err == nil {
			return nil
		}
		cli.leaseId = 0
	}
	if err := cli.leaseLocked(ctx); err != nil {
		return err
	}
	_, err := cli.client.Put(ctx, target.String(), target.Host(), clientv3.WithLease(cli.leaseId))
	return err
}

func (cli *EtcdRegister) Close() error {
	return cli.client.Close()
}
