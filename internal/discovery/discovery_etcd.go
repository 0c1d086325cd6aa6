package discovery

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/wukong-cloud/metainfo/util/logx"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdDiscover reads endpoints stored under the service name prefix, as
// written by register.EtcdRegister.
type EtcdDiscover struct {
	client *clientv3.Client
	mu     sync.Mutex
	chans  map[string]chan []string
}

func NewEtcdDiscover(hosts string) (*EtcdDiscover, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   splitHosts(hosts),
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return &EtcdDiscover{client: cli, chans: make(map[string]chan []string)}, nil
}

func splitHosts(hosts string) []string {
	endpoints := make([]string, 0)
	for _, h := range strings.Split(hosts, ";") {
		if h = strings.TrimSpace(h); h != "" {
			endpoints = append(endpoints, h)
		}
	}
	return endpoints
}

func (cli *EtcdDiscover) Find(name string) []string {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	resp, err := cli.client.Get(ctx, name+"/", clientv3.WithPrefix())
	if err != nil {
		logx.Log(logx.Kv("message", "etcd find failed"), logx.Kv("name", name), logx.Kv("error", err))
		return nil
	}
	endpoints := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		endpoints = append(endpoints, string(kv.Value))
	}
	return endpoints
}

// Watch starts one watcher per name; repeated calls share its channel.
func (cli *EtcdDiscover) Watch(name string) <-chan []string {
	cli.mu.Lock()
	defer cli.mu.Unlock()
	if ch, ok := cli.chans[name]; ok {
		return ch
	}
	ch := make(chan []string, 1)
	cli.chans[name] = ch
	go func() {
		defer logx.Recover()
		watchCh := cli.client.Watch(context.Background(), name+"/", clientv3.WithPrefix())
		for n := range watchCh {
			changed := false
			for _, ev := range n.Events {
				switch ev.Type {
				case mvccpb.DELETE, mvccpb.PUT:
					changed = true
				}
			}
			if !changed {
				continue
			}
			list := cli.Find(name)
			select {
			case <-ch:
			default:
			}
			ch <- list
		}
	}()
	return ch
}

func (cli *EtcdDiscover) Close() error {
	return cli.client.Close()
}
