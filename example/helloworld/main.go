package main

import (
	"flag"

	"github.com/wukong-cloud/metainfo/example/helloworld/handler"
	"github.com/wukong-cloud/metainfo/transport"
	"github.com/wukong-cloud/metainfo/util/logx"
)

func main() {
	configFile := flag.String("config", "", "-config config.yaml")
	flag.Parse()
	if *configFile != "" {
		if err := transport.InitConfig(*configFile); err != nil {
			logx.Log("load config failed", logx.Kv("error", err))
			return
		}
	}

	server := transport.NewRPCServer(handler.ServerName, &handler.HelloServerImpl{}, handler.Dispatch, transport.WithServerOptionAddr(":9092"))
	app := transport.NewApp(transport.WithServer(server))
	logx.Log("start service")
	if err := app.Run(); err != nil {
		logx.Log("service start failed", logx.Kv("error", err))
	}
}
