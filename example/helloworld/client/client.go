package main

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/wukong-cloud/metainfo"
	"github.com/wukong-cloud/metainfo/example/helloworld/handler"
	"github.com/wukong-cloud/metainfo/transport"
)

func main() {
	client := transport.NewClient(handler.ServerName,
		transport.WithClientOptionAddr("127.0.0.1:9092"),
		transport.WithClientOptionMaxConn(2),
		transport.WithClientOptionAssignLogID(true),
	)
	defer client.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mi := metainfo.New()
			mi.SetPersistent(transport.ConsistentHashKey, strconv.Itoa(i))
			ctx := transport.WithDownstream(metainfo.WithMetaInfo(context.Background(), mi), mi)

			resp := &handler.HelloResp{}
			if err := client.Call(ctx, handler.MethodSayHello, &handler.HelloReq{Name: "world " + strconv.Itoa(i)}, resp); err != nil {
				fmt.Println(err.Error())
				return
			}
			servedBy, _ := mi.GetBackwardDownstream("SERVED_BY")
			fmt.Println(i, resp.Message, servedBy)
		}(i)
	}
	wg.Wait()
}
