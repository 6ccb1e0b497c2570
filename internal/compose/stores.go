package compose

import (
	"github.com/flo-mic/stackgen/internal/descriptor"
	"github.com/flo-mic/stackgen/internal/naming"
)

// Images and volumes of the optional data stores.
const (
	PostgresImage = "postgres:16-alpine"
	PgAdminImage  = "dpage/pgadmin4:8.10"
	MongoImage    = "mongo:7"
	RedisImage    = "redis:7-alpine"

	VolumePostgres = "pg_data"
	VolumePgAdmin  = "pgadmin_data"
	VolumeMongo    = "mongo_data"
	VolumeRedis    = "redis_data"
)

// storeEnvFile is shared by every data store service.
const storeEnvFile = "./db/.env"

// storeServices appends the enabled data stores to services and returns the
// volumes they need. Development publishes each store's standard port on the
// host for local tooling; production keeps them on the internal network.
func storeServices(services *mapping, d descriptor.Descriptor, project string, dev bool, tz string, vols *volumeSet) {
	container := func(name string) string {
		if dev {
			return project + "_" + name + "_dev"
		}
		return project + "_" + name
	}
	publish := func(svc *mapping, host, cont int) {
		if dev {
			svc.set("ports", seq(portMapping(host, cont)))
		}
	}

	if d.DataStores.Postgres {
		pg := newMapping().
			setStr("image", PostgresImage).
			setStr("container_name", container("postgres")).
			setStr("env_file", storeEnvFile).
			set("environment", seq(str("TZ="+tz))).
			set("volumes", seq(strs(
				"./db/init:/docker-entrypoint-initdb.d:ro",
				VolumePostgres+":/var/lib/postgresql/data",
			)...))
		publish(pg, naming.PostgresPort, naming.PostgresPort)
		pg.setStr("restart", restartPolicy)
		services.set("postgres", pg.node)

		admin := newMapping().
			setStr("image", PgAdminImage).
			setStr("container_name", container(naming.AdminPanelSub)).
			setStr("env_file", storeEnvFile).
			set("environment", seq(str("PGADMIN_CONFIG_ENHANCED_COOKIE_PROTECTION=True"))).
			set("volumes", seq(strs(
				VolumePgAdmin+":/var/lib/pgadmin",
				"./db/pgadmin/servers.json:/pgadmin4/servers.json:ro",
			)...))
		publish(admin, naming.PgAdminPort, 80)
		admin.set("depends_on", flowSeq(str("postgres")))
		admin.setStr("restart", restartPolicy)
		services.set(naming.AdminPanelSub, admin.node)

		vols.add(VolumePostgres, VolumePgAdmin)
	}

	if d.DataStores.Mongo {
		mongo := newMapping().
			setStr("image", MongoImage).
			setStr("container_name", container("mongo")).
			setStr("env_file", storeEnvFile).
			set("volumes", seq(str(VolumeMongo+":/data/db")))
		publish(mongo, naming.MongoPort, naming.MongoPort)
		mongo.setStr("restart", restartPolicy)
		services.set("mongo", mongo.node)
		vols.add(VolumeMongo)
	}

	if d.DataStores.Redis {
		// The password comes from the container environment (db/.env), so the
		// variable is escaped from compose interpolation.
		redis := newMapping().
			setStr("image", RedisImage).
			setStr("container_name", container("redis")).
			setStr("env_file", storeEnvFile).
			set("command", flowSeq(quotedStrs(
				"sh", "-c", `exec redis-server --appendonly yes --requirepass "$$REDIS_PASSWORD"`,
			)...)).
			set("volumes", seq(str(VolumeRedis+":/data")))
		publish(redis, naming.RedisPort, naming.RedisPort)
		redis.setStr("restart", restartPolicy)
		services.set("redis", redis.node)
		vols.add(VolumeRedis)
	}
}

// storeDependencies lists the services an application container must wait for.
// The admin panel is not a dependency of anything but the proxy.
func storeDependencies(d descriptor.Descriptor) []string {
	var deps []string
	for _, s := range d.DataStores.Enabled() {
		deps = append(deps, string(s))
	}
	return deps
}
