// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command ringhttpd runs the example server: a handful of demo routes on
// top of the static routes discovered under the document root.
//
// Flags override RINGHTTP_* environment variables:
//
//	ringhttpd --address 127.0.0.1:8080 --path ./www
package main

import (
	"fmt"
	"net/netip"
	"os"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"code.hybscloud.com/ringhttp"
	"code.hybscloud.com/ringhttp/httpx"
	"code.hybscloud.com/ringhttp/logx"
)

func jsonMsg(v any) (httpx.ResponseMsg, error) {
	body, err := sonic.Marshal(v)
	if err != nil {
		return httpx.ResponseMsg{}, err
	}
	return ringhttp.TextMsg("application/json", body), nil
}

func registerRoutes() {
	ringhttp.Get("/hello", func(*httpx.Request) ringhttp.Response {
		return ringhttp.Msg(ringhttp.TextMsg("text/plain", []byte("Hello, World!")))
	})

	ringhttp.GetDyn("/user/{id}", func(_ *httpx.Request, params map[string]string) ringhttp.Response {
		return ringhttp.Msg(ringhttp.TextMsg("text/plain", []byte("User ID: "+params["id"])))
	})

	ringhttp.Get("/data", func(*httpx.Request) ringhttp.Response {
		msg, err := jsonMsg(map[string]any{
			"message": "Hello, JSON!",
			"value":   42,
			"array":   []int{1, 2, 3},
		})
		if err != nil {
			return ringhttp.Error(httpx.StatusInternalServerError)
		}
		return ringhttp.Msg(msg)
	})

	ringhttp.Post("/submit", func(req *httpx.Request) ringhttp.Response {
		var object map[string]any
		if err := sonic.Unmarshal(req.Body, &object); err != nil {
			return ringhttp.Error(httpx.StatusBadRequest)
		}
		if object == nil {
			object = make(map[string]any)
		}
		object["status"] = "received"
		msg, err := jsonMsg(object)
		if err != nil {
			return ringhttp.Error(httpx.StatusInternalServerError)
		}
		return ringhttp.Msg(msg)
	})
}

func main() {
	flags := pflag.NewFlagSet("ringhttpd", pflag.ContinueOnError)
	flags.StringP("address", "a", "127.0.0.1:8080", "listen address (host:port)")
	flags.StringP("path", "p", "./www", "static document root")
	flags.String("log-file", "", "log file (stderr when empty; rolls at 10MB)")
	flags.Int("workers", 4, "worker thread count")
	flags.Int("max-conn", 128, "listen backlog per accepter")
	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	v := viper.New()
	v.SetEnvPrefix("ringhttp")
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logx.Init(logx.Config{
		File:  v.GetString("log-file"),
		Level: zerolog.InfoLevel,
	})

	addr, err := netip.ParseAddrPort(v.GetString("address"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid listen address %q: %v\n", v.GetString("address"), err)
		os.Exit(2)
	}

	ringhttp.Env().
		SetListenAddr(addr).
		SetRootPath(v.GetString("path")).
		SetWorkerCount(v.GetInt("workers")).
		SetMaxWorkerConn(v.GetInt("max-conn"))

	registerRoutes()
	ringhttp.Run()
}
